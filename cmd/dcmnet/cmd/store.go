package cmd

import (
	"context"
	"fmt"

	netdicom "github.com/giesekow/go-dcmnet"
	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dcmfile"
	"github.com/giesekow/go-dcmnet/tag"
	"github.com/spf13/cobra"
)

// NewStoreCmd sends Part 10 files with C-STORE.
func NewStoreCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store HOST:PORT FILE...",
		Short: "send files with C-STORE",
		Long:  "Reads DICOM Part 10 files and sends each over one association with C-STORE.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []*dcmfile.File
			for _, path := range args[1:] {
				f, err := dcmfile.ReadFile(path)
				if err != nil {
					return err
				}
				files = append(files, f)
			}
			params := userParams(cmd)
			params.Contexts = storageContexts(files)

			a, err := netdicom.Connect(ctx, args[0], params)
			if err != nil {
				return err
			}
			var failed int
			for i, f := range files {
				uid, _ := f.DataSet.GetString(tag.SOPInstanceUID)
				if err := a.CStore(ctx, f.DataSet); err != nil {
					if a.Err() != nil {
						return err
					}
					failed++
					fmt.Printf("%s: %s: %v\n", args[i+1], uid, err)
					continue
				}
				fmt.Printf("%s: %s: stored\n", args[i+1], uid)
			}
			if err := release(ctx, a); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(files))
			}
			return nil
		},
	}
	addUserFlags(cmd)
	return cmd
}

// storageContexts proposes one context per SOP class. Native files may be
// re-encoded in any standard syntax; encapsulated ones only in their own.
func storageContexts(files []*dcmfile.File) []netdicom.ProposedContext {
	var contexts []netdicom.ProposedContext
	index := map[string]int{}
	for _, f := range files {
		sopClassUID, _ := f.DataSet.GetString(tag.SOPClassUID)
		tss := []string{f.TransferSyntax.UID}
		if !f.TransferSyntax.Encapsulated {
			tss = append(tss, dataset.StandardTransferSyntaxes...)
		}
		i, ok := index[sopClassUID]
		if !ok {
			index[sopClassUID] = len(contexts)
			contexts = append(contexts, netdicom.ProposedContext{AbstractSyntaxUID: sopClassUID})
			i = len(contexts) - 1
		}
		for _, ts := range tss {
			if !contains(contexts[i].TransferSyntaxUIDs, ts) {
				contexts[i].TransferSyntaxUIDs = append(contexts[i].TransferSyntaxUIDs, ts)
			}
		}
	}
	return contexts
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
