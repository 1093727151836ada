// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output JSON",
	}
}

// setupCommand creates the config file and the database schema.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file if missing and run database migrations",
		Action: r.Setup,
	}
}

// listsCommand handles list operations
func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "lists",
		Aliases: []string{"list", "l"},
		Usage:   "Create, show, rename and delete lists",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a list",
				ArgsUsage: "NAME",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "List category (Movies enables director and year fields)",
						Value: "Generic",
					},
				},
				Action: r.ListsAdd,
			},
			{
				Name:    "ls",
				Aliases: []string{"show"},
				Usage:   "Show lists in the current sort order",
				Flags:   []cli.Flag{jsonFlag()},
				Action:  r.ListsShow,
			},
			{
				Name:      "rename",
				Usage:     "Rename a list or change its category",
				ArgsUsage: "LIST_ID NAME",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "New category",
					},
				},
				Action: r.ListsRename,
			},
			{
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "Delete a list and all of its items",
				ArgsUsage: "LIST_ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ListsRemove,
			},
		},
	}
}

func itemFieldFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "notes",
			Aliases: []string{"n"},
			Usage:   "Free-form notes",
		},
		&cli.StringFlag{
			Name:  "director",
			Usage: "Director (Movies lists only)",
		},
		&cli.StringFlag{
			Name:  "year",
			Usage: "Four-digit release year (Movies lists only)",
		},
	}
}

// itemsCommand handles item operations
func itemsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "items",
		Aliases: []string{"item", "i"},
		Usage:   "Add, show, edit and delete items of a list",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add an item to a list",
				ArgsUsage: "LIST_ID TITLE",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "title"},
				},
				Flags:  itemFieldFlags(),
				Action: r.ItemsAdd,
			},
			{
				Name:      "ls",
				Aliases:   []string{"show"},
				Usage:     "Show the items of a list, newest first",
				ArgsUsage: "LIST_ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "list"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.ItemsShow,
			},
			{
				Name:      "edit",
				Usage:     "Change the title, notes or movie fields of an item",
				ArgsUsage: "ITEM_ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "New title",
					},
				}, itemFieldFlags()...),
				Action: r.ItemsEdit,
			},
			{
				Name:      "done",
				Usage:     "Mark an item as done",
				ArgsUsage: "ITEM_ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.itemsStatus(true),
			},
			{
				Name:      "undone",
				Usage:     "Mark an item as not done",
				ArgsUsage: "ITEM_ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.itemsStatus(false),
			},
			{
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "Delete an item",
				ArgsUsage: "ITEM_ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ItemsRemove,
			},
		},
	}
}

// sortCommand handles the list sort mode
func sortCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sort",
		Usage: "Show or change how lists are ordered",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the sort mode and custom ranks",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SortShow,
			},
			{
				Name:      "set",
				Usage:     "Set the sort mode: name, date or custom",
				ArgsUsage: "MODE",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mode"},
				},
				Action: r.SortSet,
			},
		},
	}
}

// reorderCommand stores a custom order
func reorderCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "reorder",
		Usage:     "Store a custom order; lists not named lose their rank",
		ArgsUsage: "LIST_ID...",
		Action:    r.Reorder,
	}
}

// exportCommand handles backups and per-list exports
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a JSON backup of every list, or one file set per list with --bulk",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Backup file path (default: stdout)",
			},
			&cli.BoolFlag{
				Name:  "bulk",
				Usage: "Export each list separately with a manifest",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Bulk export format: json, csv, markdown, txt, yaml (default: from config)",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Bulk export directory (default: from config, else listx_export_{epoch})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent bulk export workers (default: from config)",
			},
		},
		Action: r.Export,
	}
}

// importCommand merges a backup into the store
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Merge a JSON backup into the store, skipping lists and items that already exist",
		ArgsUsage: "FILE",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Import without asking; required when stdin is not a terminal",
			},
		},
		Action: r.Import,
	}
}

// serveCommand starts the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: from config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default: from config)",
			},
		},
		Action: r.Serve,
	}
}
