package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	netdicom "github.com/giesekow/go-dcmnet"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRoot builds the dcmnet command tree.
func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dcmnet",
		Short:        "DICOM network and file tool",
		Long:         "dcmnet opens DICOM associations (C-ECHO, C-STORE), runs a storage SCP and dumps Part 10 files.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbosity, _ := cmd.Flags().GetInt("verbosity")
			dicomlog.SetLevel(verbosity)
			if path, _ := cmd.Flags().GetString("log-file"); path != "" {
				// dicomlog writes through the standard logger.
				log.SetOutput(&lumberjack.Logger{
					Filename:   path,
					MaxSize:    50, // megabytes
					MaxBackups: 5,
					MaxAge:     28, // days
					Compress:   true,
				})
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewEchoCmd(ctx),
		NewStoreCmd(ctx),
		NewServeCmd(ctx),
		NewDumpCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.IntP("verbosity", "v", 0, "log verbosity: 0 errors, 1 association events, 2 PDU tracing")
	pf.String("log-file", "", "write logs to this file, rotated, instead of stderr")
	return cmd
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
	return cmd
}

// addUserFlags registers the flags shared by the commands that open an
// association.
func addUserFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("calling-ae", "DCMNET", "our AE title")
	pf.String("called-ae", "ANY-SCP", "AE title of the peer")
	pf.Uint32("max-pdu", netdicom.DefaultMaxPDULength, "largest P-DATA-TF we accept")
	pf.Duration("timeout", netdicom.DefaultConnectTimeout, "connect and negotiation timeout")
}

func userParams(cmd *cobra.Command) netdicom.ServiceUserParams {
	calling, _ := cmd.Flags().GetString("calling-ae")
	called, _ := cmd.Flags().GetString("called-ae")
	maxPDU, _ := cmd.Flags().GetUint32("max-pdu")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return netdicom.ServiceUserParams{
		CallingAETitle: calling,
		CalledAETitle:  called,
		MaxPDULength:   maxPDU,
		ConnectTimeout: timeout,
	}
}

func release(ctx context.Context, a *netdicom.Association) error {
	ctx, cancel := context.WithTimeout(ctx, 2*netdicom.DefaultReleaseTimeout)
	defer cancel()
	return a.Release(ctx)
}

// NewEchoCmd verifies connectivity with C-ECHO.
func NewEchoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo HOST:PORT",
		Short: "send C-ECHO",
		Long:  "Opens an association proposing the Verification SOP class and sends one C-ECHO.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := userParams(cmd)
			params.SOPClasses = []string{"1.2.840.10008.1.1"}
			start := time.Now()
			a, err := netdicom.Connect(ctx, args[0], params)
			if err != nil {
				return err
			}
			if err := a.CEcho(ctx); err != nil {
				a.Abort()
				return err
			}
			if err := release(ctx, a); err != nil {
				return err
			}
			fmt.Printf("C-ECHO %s (%s): ok in %v\n", args[0], params.CalledAETitle, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	addUserFlags(cmd)
	return cmd
}
