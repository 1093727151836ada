package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/shared"
)

func parseID(what, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingArgument, what)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", shared.ErrInvalidArgument, what, raw)
	}
	return id, nil
}

func requireArg(what, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, what)
	}
	return value, nil
}

// ListsAdd creates a list.
func (r *Runner) ListsAdd(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg("list name", cmd.StringArg("name"))
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	category := models.NormalizeCategory(cmd.String("category"))
	id, err := r.repo.InsertList(ctx, name, category)
	if err != nil {
		return err
	}

	r.logger.Debug("list created", "id", id, "name", name)
	return r.writePlain("✓ Created list %d: %s (%s)\n", id, name, category)
}

// ListsShow prints every list in the current sort order.
func (r *Runner) ListsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	lists, err := r.repo.ListsWithCount(ctx)
	if err != nil {
		return err
	}
	sorted := r.order.Sort(lists)

	if cmd.Bool("json") {
		return r.writeJSON(sorted, true)
	}

	if len(sorted) == 0 {
		return r.writePlain("No lists yet. Create one with 'listx lists add NAME'.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Lists (%d, sorted by %s)", len(sorted), r.order.Mode()))
	for _, l := range sorted {
		r.writePlain("%4d  %-30s %-12s %d items\n", l.ID, l.Name, l.Category, l.ItemCount)
	}
	return nil
}

// ListsRename changes the name and, with --category, the category of a list.
func (r *Runner) ListsRename(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID("list id", cmd.StringArg("id"))
	if err != nil {
		return err
	}
	name, err := requireArg("list name", cmd.StringArg("name"))
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	list, err := r.repo.GetList(ctx, id)
	if err != nil {
		return err
	}
	list.Name = name
	if cmd.IsSet("category") {
		list.Category = models.NormalizeCategory(cmd.String("category"))
	}

	if err := r.repo.UpdateList(ctx, list); err != nil {
		return err
	}
	return r.writePlain("✓ Updated list %d: %s (%s)\n", list.ID, list.Name, list.Category)
}

// ListsRemove deletes a list with its items and drops its custom rank.
func (r *Runner) ListsRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID("list id", cmd.StringArg("id"))
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	list, err := r.repo.GetList(ctx, id)
	if err != nil {
		return err
	}
	if err := r.repo.DeleteList(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted list %d: %s\n", list.ID, list.Name)
}
