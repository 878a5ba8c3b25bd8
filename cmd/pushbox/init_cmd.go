package main

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pushbox/pushbox/internal/config"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var target string
	var remoteDir string
	var port int
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter " + config.DefaultConfigName + " in the current directory",
		Run: func(cmd *cobra.Command, args []string) {
			if cfg, err := config.LoadFromFile(config.DefaultConfigName); err == nil && !force {
				fmt.Println("Project already initialized, use --force to overwrite")
				fmt.Printf("Config: %s\n", green.Render(config.DefaultConfigName))
				fmt.Printf("Target: %s\n", cyan.Render(cfg.Remote()))
				os.Exit(0)
			}

			if target == "" {
				fmt.Printf("%s: %s\n", red.Render("ERROR"), "target is required")
				os.Exit(1)
			}

			if remoteDir == "" {
				fmt.Printf("%s: %s\n", red.Render("ERROR"), "remote-dir is required")
				os.Exit(1)
			}

			if !path.IsAbs(remoteDir) {
				fmt.Printf("%s: %s\n", red.Render("ERROR"), "remote-dir must be an absolute path")
				os.Exit(1)
			}

			// source_dir stays "." so the config remains portable across checkouts
			cfg := &config.Config{
				SourceDir:  ".",
				TargetHost: target,
				TargetPort: port,
				TargetDir:  path.Clean(remoteDir),
				SourceMode: config.SourceModeContents,
				Exclude:    []string{"target/", "*.log"},
				Path:       config.DefaultConfigName,
			}

			if err := cfg.Save(); err != nil {
				fmt.Printf("%s: %s\n", red.Render("ERROR"), err)
				os.Exit(1)
			}

			fmt.Println("Project initialized")
			fmt.Printf("Config: %s\n", green.Render(config.DefaultConfigName))
			fmt.Printf("Target: %s\n", cyan.Render(cfg.Remote()))
			fmt.Printf("Port:   %s\n", cyan.Render(strconv.Itoa(cfg.TargetPort)))
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&target, "target", "t", "", "remote destination, host or user@host")
	cmd.Flags().StringVarP(&remoteDir, "remote-dir", "r", "", "absolute destination directory on the target")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "SSH port on the target")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")

	return cmd
}
