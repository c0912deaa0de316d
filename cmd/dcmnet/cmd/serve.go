package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	netdicom "github.com/giesekow/go-dcmnet"
	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dcmfile"
	"github.com/giesekow/go-dcmnet/dimse"
	"github.com/giesekow/go-dcmnet/sopclass"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/spf13/cobra"
)

// NewServeCmd runs a storage SCP that writes every received instance to a
// directory.
func NewServeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run a C-ECHO/C-STORE provider",
		Long:  "Listens for associations, answers C-ECHO and writes C-STORE instances as Part 10 files.",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("listen")
			ae, _ := cmd.Flags().GetString("ae")
			dir, _ := cmd.Flags().GetString("dir")
			maxPDU, _ := cmd.Flags().GetUint32("max-pdu")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			supported := map[string][]string{}
			for _, uid := range sopclass.UIDs(sopclass.VerificationClasses, sopclass.StorageClasses) {
				supported[uid] = dataset.StandardTransferSyntaxes
			}
			sp := netdicom.NewServiceProvider(netdicom.ServiceProviderParams{
				AETitle:           ae,
				SupportedContexts: supported,
				MaxPDULength:      maxPDU,
				CStore:            storeToDir(dir),
			})
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			fmt.Printf("%s listening on %v, storing to %s\n", ae, listener.Addr(), dir)
			err = sp.Serve(ctx, listener)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("listen", "l", ":11112", "address to listen on")
	pf.String("ae", "DCMNET", "our AE title; associations calling another title are rejected")
	pf.StringP("dir", "d", ".", "directory for received files")
	pf.Uint32("max-pdu", netdicom.DefaultMaxPDULength, "largest P-DATA-TF we accept")
	return cmd
}

func storeToDir(dir string) netdicom.CStoreCallback {
	return func(ctx context.Context, conn netdicom.ConnectionState, transferSyntaxUID, sopClassUID, sopInstanceUID string, ds *dataset.DataSet) dimse.Status {
		name := sopInstanceUID
		if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
			name = dcmfile.NewUID()
		}
		ts, err := dataset.LookupTransferSyntax(transferSyntaxUID)
		if err != nil {
			return dimse.Status{Status: dimse.CStoreCannotUnderstand, ErrorComment: err.Error()}
		}
		f := &dcmfile.File{
			Meta:           dcmfile.NewMeta(sopClassUID, sopInstanceUID, ts.UID),
			DataSet:        ds,
			TransferSyntax: ts,
		}
		path := filepath.Join(dir, name+".dcm")
		if err := dcmfile.WriteFile(path, f); err != nil {
			dicomlog.Vprintf(0, "dcmnet.serve: %s from %s: %v", sopInstanceUID, conn.CallingAETitle, err)
			return dimse.Status{Status: dimse.CStoreOutOfResources, ErrorComment: err.Error()}
		}
		dicomlog.Vprintf(1, "dcmnet.serve: stored %s from %s", path, conn.CallingAETitle)
		return dimse.Success
	}
}
