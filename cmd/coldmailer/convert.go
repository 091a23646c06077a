package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var convertTo string

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the contact roster between CSV and JSON",
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "", "target format (csv or json)")
	convertCmd.MarkFlagRequired("to")
}

func runConvert(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	path, err := a.store.ConvertTo(convertTo)
	if err != nil {
		return err
	}

	if err := a.cfg.SetDataFormat(convertTo); err != nil {
		return err
	}

	fmt.Printf("Contacts converted to %s at %s\n", convertTo, path)
	return nil
}
