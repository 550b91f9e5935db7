package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

func newQueryCmd(configFile *string) *cobra.Command {
	var collection string
	var hintJSON string
	var limit int
	var countOnly bool

	cmd := &cobra.Command{
		Use:   "query <query-json>",
		Short: "Run a single query against a collection and print matching documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if collection == "" {
				return fmt.Errorf("--collection is required")
			}
			qv, err := jsonToValue([]byte(args[0]))
			if err != nil {
				return err
			}
			raw, err := value.Encode(qv)
			if err != nil {
				return err
			}

			var hint []byte
			if hintJSON != "" {
				hv, err := jsonToValue([]byte(hintJSON))
				if err != nil {
					return fmt.Errorf("parsing --hint: %w", err)
				}
				if hint, err = value.Encode(hv); err != nil {
					return err
				}
			}

			db, err := openDB(*configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			if countOnly {
				n, err := db.QueryCount(collection, raw, hint)
				if err != nil {
					return err
				}
				fmt.Println(n)
				return nil
			}

			var printErr error
			printed := 0
			_, err = db.QueryExec(collection, raw, hint, func(id bson.ObjectID, doc value.Value) int {
				out, jerr := valueToJSON(doc)
				if jerr != nil {
					printErr = jerr
					return 0
				}
				fmt.Println(out)
				printed++
				if limit > 0 && printed >= limit {
					return 0
				}
				return 1
			})
			if err != nil {
				return err
			}
			return printErr
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	cmd.Flags().StringVar(&hintJSON, "hint", "", "optional query-plan hint document, as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "stop after this many results (0 = unlimited)")
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of matches")
	return cmd
}
