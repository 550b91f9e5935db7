package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPutCmd(configFile *string) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "put <document-json>",
		Short: "Insert a document into a collection and print its assigned id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if collection == "" {
				return fmt.Errorf("--collection is required")
			}
			doc, err := jsonToValue([]byte(args[0]))
			if err != nil {
				return err
			}

			db, err := openDB(*configFile)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.EnsureCollection(collection); err != nil {
				return err
			}
			id, err := db.Put(collection, doc)
			if err != nil {
				return err
			}
			cmd.Println(id.Hex())
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	return cmd
}
