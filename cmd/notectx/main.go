package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/server"
	"github.com/notectx/notectx/store"
	"github.com/notectx/notectx/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "notectx",
	Short: "A context-oriented personal notes engine",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:                  viper.GetString("mode"),
			Addr:                  viper.GetString("addr"),
			Port:                  viper.GetInt("port"),
			Data:                  viper.GetString("data"),
			Driver:                viper.GetString("driver"),
			DSN:                   viper.GetString("dsn"),
			InstanceURL:           viper.GetString("instance-url"),
			Version:               version,
			AIEnabled:             viper.GetBool("ai-enabled"),
			AIAPIKey:              viper.GetString("ai-api-key"),
			AIBaseURL:             viper.GetString("ai-base-url"),
			AIEmbeddingModel:      viper.GetString("ai-embedding-model"),
			AIEmbeddingDimensions: viper.GetInt("ai-embedding-dimensions"),
			AILLMModel:            viper.GetString("ai-llm-model"),
			SearchHighThreshold:   viper.GetFloat64("search-high-threshold"),
			SearchLowThreshold:    viper.GetFloat64("search-low-threshold"),
		}
		if err := instanceProfile.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		driver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			cancel()
			slog.Error("failed to create db driver", "error", err)
			return err
		}

		storeInstance := store.New(driver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			cancel()
			slog.Error("failed to migrate", "error", err)
			return err
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			cancel()
			slog.Error("failed to create server", "error", err)
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			slog.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		}()

		printGreeting(instanceProfile)
		if err := s.Start(ctx); err != nil {
			slog.Error("server error", "error", err)
		}
		s.Shutdown()
		return nil
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)
	viper.SetDefault("data", ".")
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "binding port of the server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name (required for postgres)")
	rootCmd.PersistentFlags().String("instance-url", "http://localhost:8081", "public url of this instance")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	// ai-api-key becomes NOTECTX_AI_API_KEY and so on.
	viper.SetEnvPrefix("notectx")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func printGreeting(p *profile.Profile) {
	fmt.Printf(`notectx %s
mode:   %s
driver: %s
port:   %d
`, p.Version, p.Mode, p.Driver, p.Port)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
