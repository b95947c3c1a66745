package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gatherly/internal/activities"
	"gatherly/internal/config"
	"gatherly/internal/db"
	"gatherly/internal/domain"
	"gatherly/internal/events"
	"gatherly/internal/identity"
	"gatherly/internal/mediator"
	"gatherly/internal/migrate"
	"gatherly/internal/profiles"
	"gatherly/internal/server"
	"gatherly/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "gatherly",
	Short: "Gatherly CLI",
	Long: `Gatherly manages social activities: create, edit, attend, cancel.
The serve command exposes the HTTP API; the remaining commands administer
the local database directly (seeding users, inspecting activities and the
event log).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GATHERLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if secret := viper.GetString("jwt-secret"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("GATHERLY_JWT_SECRET or auth.jwt_secret is required for bearer auth")
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			st := store.Store{DB: conn}
			m := mediator.New()
			if err := activities.Register(m, activities.Env{Store: st, Events: events.Writer{DB: conn}}); err != nil {
				return err
			}
			if err := profiles.Register(m, profiles.Env{Store: st}); err != nil {
				return err
			}
			tokens := identity.TokenService{
				Secret: cfg.Auth.JWTSecret,
				TTL:    time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
			}
			handler, err := server.New(server.Config{
				Mediator:       m,
				Store:          st,
				Tokens:         tokens,
				BasePath:       cfg.Server.BasePath,
				AllowedOrigins: cfg.CORS.AllowedOrigins,
				Logger:         log.Default(),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gatherly API on http://%s%s (OpenAPI at %s/openapi.json)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default gatherly.yml and create the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				fmt.Printf("Initialized workspace; config at %s, database at %s\n", path, db.Path(workspace))
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userAddCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var username, displayName, email, password, image string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user who can log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				hash, err := identity.HashPassword(password)
				if err != nil {
					return err
				}
				u := domain.User{
					Username:     username,
					DisplayName:  displayName,
					Email:        email,
					PasswordHash: hash,
					CreatedAt:    time.Now().UTC().Format(time.RFC3339),
				}
				if displayName == "" {
					u.DisplayName = username
				}
				if image != "" {
					u.Image = &image
				}
				if err := st.InsertUser(ctx, u); err != nil {
					return err
				}
				return printUser(u)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username (immutable)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.Flags().StringVar(&image, "image", "", "avatar image URL")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Inspect activities"}
	act.AddCommand(activityListCmd())
	act.AddCommand(activityShowCmd())
	return act
}

func activityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				items, err := st.ListActivities(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Date", "City", "Venue", "Host", "Attendees", "Cancelled"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Title, a.Date.Format(time.RFC3339), a.City, a.Venue, a.HostUsername, len(a.Attendees), a.IsCancelled})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func activityShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				a, err := st.GetActivity(ctx, id)
				if err != nil {
					return err
				}
				return printActivity(a)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "activity id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Event log"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				entries, err := events.Writer{DB: st.DB}.Tail(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor", "Payload"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.ActorID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "number of events")
	logRoot.AddCommand(tail)
	return logRoot
}

func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, store.Store{DB: conn})
}

func printUser(u domain.User) error {
	if viper.GetBool("json") {
		return printJSON(u)
	}
	image := ""
	if u.Image != nil {
		image = *u.Image
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Username", "Display Name", "Email", "Image"})
	tw.AppendRow(table.Row{u.Username, u.DisplayName, u.Email, image})
	tw.Render()
	return nil
}

func printActivity(a domain.Activity) error {
	if viper.GetBool("json") {
		return printJSON(a)
	}
	attendees := make([]string, 0, len(a.Attendees))
	for _, p := range a.Attendees {
		attendees = append(attendees, p.Username)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendRow(table.Row{"ID", a.ID})
	tw.AppendRow(table.Row{"Title", a.Title})
	tw.AppendRow(table.Row{"Date", a.Date.Format(time.RFC3339)})
	tw.AppendRow(table.Row{"Category", a.Category})
	tw.AppendRow(table.Row{"Description", a.Description})
	tw.AppendRow(table.Row{"City", a.City})
	tw.AppendRow(table.Row{"Venue", a.Venue})
	tw.AppendRow(table.Row{"Host", a.HostUsername})
	tw.AppendRow(table.Row{"Cancelled", a.IsCancelled})
	tw.AppendRow(table.Row{"Attendees", strings.Join(attendees, ", ")})
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
