package cmd

import (
	"context"
	"fmt"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dcmfile"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/spf13/cobra"
)

// NewDumpCmd prints the elements of Part 10 files.
func NewDumpCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump FILE...",
		Short: "print the elements of DICOM files",
		Long:  "Parses DICOM Part 10 files and prints the meta group and the data set.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []dataset.DecodeOption
			if skip, _ := cmd.Flags().GetBool("skip-pixel-data"); skip {
				opts = append(opts, dataset.SkipPixelData())
			}
			for _, path := range args {
				f, err := dcmfile.ReadFile(path, opts...)
				if err != nil {
					return err
				}
				fmt.Printf("# %s: %s\n", path, dicomuid.UIDString(f.TransferSyntax.UID))
				fmt.Print(f.Meta)
				fmt.Print(f.DataSet)
			}
			return nil
		},
	}
	cmd.PersistentFlags().Bool("skip-pixel-data", false, "do not load pixel data")
	return cmd
}
