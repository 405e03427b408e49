package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sigmaris/remctl/internal/audit"
	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/config"
	"github.com/sigmaris/remctl/internal/daemon"
	"github.com/sigmaris/remctl/internal/pathutil"
	outterm "github.com/sigmaris/remctl/internal/term"
)

var (
	serveConfigPath string
	serveListen     string
	serveLogFile    string
	serveAuditFile  string
	serveDebug      bool
	serveDaemon     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the command execution daemon",
	Long: `Run the remctld daemon.

The daemon loads the rule table, listens on a unix socket, and executes
commands on behalf of connecting clients. It runs until interrupted.

Logging goes to the log file and, when running in the foreground, to
stderr. Daemon mode (--daemon, or implied when stderr is not a terminal)
suppresses stderr logging.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "",
		"rule table path (default $REMCTLD_CONFIG or /etc/remctl/remctld.yaml)")
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", daemon.DefaultSocketPath,
		"unix socket path to listen on")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "",
		"operational log path (default /var/log/remctl as root, else per-user state directory)")
	serveCmd.Flags().StringVar(&serveAuditFile, "audit-log", "",
		"command audit log path (audit disabled when empty)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false,
		"log debug-level messages")
	serveCmd.Flags().BoolVar(&serveDaemon, "daemon", false,
		"daemon mode: no stderr logging")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	daemonMode := serveDaemon || !term.IsTerminal(int(os.Stderr.Fd()))
	logPath := serveLogFile
	if logPath == "" {
		logPath = clog.DefaultLogPath()
	}
	if err := clog.Configure(logPath, serveDebug, daemonMode); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer clog.Close()

	configPath := serveConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	opts := []daemon.Option{
		daemon.WithSocketPath(pathutil.ExpandHome(serveListen)),
	}
	var auditFile *os.File
	if serveAuditFile != "" {
		auditFile, err = clog.OpenLogFile(pathutil.ExpandHome(serveAuditFile))
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditFile.Close()
		opts = append(opts, daemon.WithAuditLogger(audit.NewLogger(auditFile)))
	}

	srv := daemon.NewServer(cfg, opts...)
	if err := srv.Start(); err != nil {
		return err
	}
	outterm.Printf("remctld listening on %s (%d rules)\n", srv.SocketPath(), len(cfg.Rules))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	clog.Info("daemon: received %s, shutting down", s)

	return srv.Stop()
}
