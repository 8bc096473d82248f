package records

import (
	"fmt"

	"github.com/ValentinKolb/recstore/cmd/util"
	"github.com/ValentinKolb/recstore/lib/records"
	"github.com/spf13/cobra"
)

var (
	readCmd = &cobra.Command{
		Use:   "read [id]",
		Short: "Reads the record with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(clientConfig)
			defer cancel()

			rec, err := records.Read(ctx, ref, args[0])
			if err != nil {
				return err
			}
			return util.PrintJSON(cmd, rec)
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all records of the kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(clientConfig)
			defer cancel()

			recs, err := records.List(ctx, ref)
			if err != nil {
				return err
			}
			return util.PrintJSON(cmd, recs)
		},
	}
	createCmd = &cobra.Command{
		Use:   "create [field=value]...",
		Short: "Creates a new record, the id is allocated by the datastore",
		Long: `Creates a new record from field=value pairs. Values that are valid JSON
(numbers, booleans, arrays, objects, quoted strings) are stored with their JSON
type, everything else is stored as a string.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return save(cmd, "", args)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [id] [field=value]...",
		Short: "Creates or replaces the record with the given id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return save(cmd, args[0], args[1:])
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [id]",
		Short: "Removes the record with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(clientConfig)
			defer cancel()

			if err := records.Remove(ctx, ref, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s(%s)\n", ref.Kind, args[0])
			return err
		},
	}
)

func save(cmd *cobra.Command, id string, fields []string) error {
	rec, err := util.ParseFields(fields)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(clientConfig)
	defer cancel()

	if rec, err = records.Update(ctx, ref, id, rec); err != nil {
		return err
	}
	return util.PrintJSON(cmd, rec)
}
