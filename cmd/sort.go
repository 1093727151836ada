package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listx/internal/models"
	"github.com/desertthunder/listx/internal/ordering"
	"github.com/desertthunder/listx/internal/shared"
)

type sortState struct {
	Mode  ordering.Mode          `json:"mode"`
	Ranks map[int64]int          `json:"ranks"`
	Lists []models.ListWithCount `json:"lists"`
}

// SortShow prints the sort mode, the stored custom ranks and the resulting order.
func (r *Runner) SortShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	lists, err := r.repo.ListsWithCount(ctx)
	if err != nil {
		return err
	}
	state := sortState{Mode: r.order.Mode(), Ranks: r.order.Ranks(), Lists: r.order.Sort(lists)}

	if cmd.Bool("json") {
		return r.writeJSON(state, true)
	}
	return r.printOrder(state)
}

func (r *Runner) printOrder(state sortState) error {
	r.writePlain("Sort mode: %s\n", state.Mode)
	if len(state.Lists) == 0 {
		return nil
	}
	r.writePlain("\n")
	for i, l := range state.Lists {
		rank := "-"
		if v, ok := state.Ranks[l.ID]; ok {
			rank = fmt.Sprint(v)
		}
		r.writePlain("%3d. %-30s (id %d, rank %s)\n", i+1, l.Name, l.ID, rank)
	}
	return nil
}

// SortSet persists a new sort mode.
func (r *Runner) SortSet(ctx context.Context, cmd *cli.Command) error {
	raw, err := requireArg("sort mode", cmd.StringArg("mode"))
	if err != nil {
		return err
	}
	mode, err := ordering.ParseMode(raw)
	if err != nil {
		return err
	}
	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	if err := r.order.SetMode(ctx, mode); err != nil {
		return err
	}
	return r.writePlain("✓ Lists are now sorted by %s\n", mode)
}

// Reorder stores the given list ids as the custom order, first id first.
func (r *Runner) Reorder(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one list id", shared.ErrMissingArgument)
	}

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID("list id", arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	if err := r.open(ctx, cmd); err != nil {
		return err
	}

	lists, err := r.repo.ListsWithCount(ctx)
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(lists))
	for _, l := range lists {
		known[l.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %d", shared.ErrListNotFound, id)
		}
	}

	if err := r.order.ReorderIDs(ctx, ids); err != nil {
		return err
	}

	r.writePlain("✓ Saved custom order for %d lists\n", len(ids))
	if r.order.Mode() != ordering.ModeCustom {
		r.writePlain("Run 'listx sort set custom' to use it.\n")
	}
	return nil
}
