package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/shared"
)

// movieFields applies --director and --year on top of current. It reports whether either flag was given.
func movieFields(cmd *cli.Command, category string, current models.Extras) (*string, bool, error) {
	if !cmd.IsSet("director") && !cmd.IsSet("year") {
		return nil, false, nil
	}
	if category != models.CategoryMovies {
		return nil, true, fmt.Errorf("%w: --director and --year only apply to %s lists", shared.ErrInvalidFlag, models.CategoryMovies)
	}

	movie, _ := current.(models.MovieExtras)
	director, year := movie.Director, movie.ReleaseYear
	if cmd.IsSet("director") {
		director = cmd.String("director")
	}
	if cmd.IsSet("year") {
		year = cmd.String("year")
	}

	extras, err := models.NewMovieExtras(director, year)
	if err != nil {
		return nil, true, err
	}
	payload, err := models.EncodeExtras(extras)
	return payload, true, err
}

// ItemsAdd adds an item to a list.
func (r *Runner) ItemsAdd(ctx context.Context, cmd *cli.Command) error {
	listID, err := parseID("list id", cmd.StringArg("list"))
	if err != nil {
		return err
	}
	title, err := requireArg("item title", cmd.StringArg("title"))
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	list, err := r.repo.GetList(ctx, listID)
	if err != nil {
		return err
	}
	custom, _, err := movieFields(cmd, list.Category, nil)
	if err != nil {
		return err
	}

	item := models.Item{
		ListID:       listID,
		Title:        title,
		Notes:        models.OptionalString(cmd.String("notes")),
		CustomFields: custom,
	}
	id, err := r.repo.InsertItem(ctx, item)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added item %d to %s: %s\n", id, list.Name, title)
}

// ItemsShow prints the items of a list with their decoded custom fields.
func (r *Runner) ItemsShow(ctx context.Context, cmd *cli.Command) error {
	listID, err := parseID("list id", cmd.StringArg("list"))
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	list, err := r.repo.GetList(ctx, listID)
	if err != nil {
		return err
	}
	items, err := r.repo.ItemsOfList(ctx, listID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(models.ListItems{List: list, Items: items}, true)
	}

	done := 0
	for _, item := range items {
		if item.Done {
			done++
		}
	}
	r.writePlainHeader(fmt.Sprintf("%s (%s): %d items, %d done", list.Name, list.Category, len(items), done))
	if len(items) == 0 {
		return r.writePlain("No items yet.\n")
	}

	for _, item := range items {
		r.writePlain("%s %4d  %s", shared.DoneMark(item.Done), item.ID, item.Title)
		if extras, err := models.DecodeExtras(list.Category, item.CustomFields); err != nil {
			r.logger.Debug("unreadable custom fields", "item", item.ID, "err", err)
		} else if summary := extras.Summary(); summary != "" {
			r.writePlain("  (%s)", summary)
		}
		r.writePlain("\n")
		if item.Notes != nil {
			r.writePlain("           %s\n", *item.Notes)
		}
	}
	return nil
}

// ItemsEdit changes only the fields whose flags are set.
func (r *Runner) ItemsEdit(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID("item id", cmd.StringArg("id"))
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	item, err := r.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	list, err := r.repo.GetList(ctx, item.ListID)
	if err != nil {
		return err
	}

	changed := false
	if cmd.IsSet("title") {
		item.Title = cmd.String("title")
		changed = true
	}
	if cmd.IsSet("notes") {
		item.Notes = models.OptionalString(cmd.String("notes"))
		changed = true
	}
	custom, set, err := movieFields(cmd, list.Category, models.ParseExtras(list.Category, item.CustomFields))
	if err != nil {
		return err
	}
	if set {
		item.CustomFields = custom
		changed = true
	}
	if !changed {
		return fmt.Errorf("%w: nothing to change; pass --title, --notes, --director or --year", shared.ErrMissingArgument)
	}

	if err := r.repo.UpdateItem(ctx, item); err != nil {
		return err
	}
	return r.writePlain("✓ Updated item %d: %s\n", item.ID, item.Title)
}

func (r *Runner) itemsStatus(done bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id, err := parseID("item id", cmd.StringArg("id"))
		if err != nil {
			return err
		}
		if err := r.open(ctx, cmd); err != nil {
			return err
		}
		if err := r.repo.SetItemStatus(ctx, id, done); err != nil {
			return err
		}
		return r.writePlain("✓ %s item %d\n", shared.DoneMark(done), id)
	}
}

// ItemsRemove deletes an item.
func (r *Runner) ItemsRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID("item id", cmd.StringArg("id"))
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}
	if err := r.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted item %d\n", id)
}
