package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"social-go/internal/config"
	appKafka "social-go/internal/kafka"
	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/services"
	"social-go/internal/storage"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for the social-go database and media store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	listUsersCmd = &cobra.Command{
		Use:   "list-users",
		Short: "列出全部用户",
		Args:  cobra.NoArgs,
		RunE:  runListUsers,
	}

	deleteUserCmd = &cobra.Command{
		Use:   "delete-user <username>",
		Short: "删除用户及其帖子、评论、私信、好友关系和媒体文件",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteUser,
	}

	scanCmd = &cobra.Command{
		Use:   "scan [html]",
		Short: "打印 HTML 片段引用的媒体文件路径 (无参数时读取 stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(listUsersCmd, deleteUserCmd, scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what the data commands share.
type app struct {
	cfg      config.Config
	users    services.UserService
	deletion services.DeletionService
	close    func()
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if _, err := logger.InitLogger(cfg.Log); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	store, err := storage.NewLocalStorageService(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}
	producer, err := appKafka.NewProducer(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}

	scanner := media.NewScanner(store.BaseDir(), string(storage.UploadKindUploads), string(storage.UploadKindMedia))
	publisher := appKafka.NewEventPublisher(producer, cfg.Kafka)
	userRepo := storage.NewGormUserRepository(db)
	friendships := services.NewFriendshipService(userRepo, storage.NewGormFriendshipRepository(db), publisher)
	content := services.NewContentService(db, scanner, store)

	return &app{
		cfg:      cfg,
		users:    services.NewUserService(db, friendships, content, store, scanner, store),
		deletion: services.NewDeletionService(db, scanner, store, cfg.Auth, publisher),
		close: func() {
			producer.Close()
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
			_ = logger.Sync()
		},
	}, nil
}

func runListUsers(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.users.ListUsers(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tVISIBILITY\tADMIN\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n",
			u.ID, u.Username, u.Visibility, a.cfg.Auth.IsAdmin(u.Username), u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runDeleteUser(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// the operator acts as an administrator without a user row
	operator := services.Identity{Username: "admin-cli", IsAdmin: true}
	report, err := a.deletion.DeleteIdentityByUsername(cmd.Context(), operator, args[0])
	if err != nil && (report == nil || !errors.Is(err, services.ErrPartialFileCleanup)) {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "已删除用户 %s (id %d)\n", report.Username, report.UserID)
	fmt.Fprintf(out, "  好友关系 %d, 评论 %d, 私信 %d, 帖子 %d\n",
		report.Friendships, report.Comments, report.DirectMessages, report.Posts)
	fmt.Fprintf(out, "  文件: 删除 %d, 保留 %d, 失败 %d\n",
		len(report.RemovedFiles), len(report.KeptFiles), len(report.FailedFiles))
	for _, p := range report.FailedFiles {
		fmt.Fprintf(out, "  未能删除: %s\n", p)
	}
	if err != nil {
		logger.Warn("partial media cleanup", zap.Error(err))
	}
	return nil
}

// runScan needs only the storage config; it never touches the database.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	var fragment string
	if len(args) == 1 {
		fragment = args[0]
	} else {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		fragment = string(b)
	}

	scanner := media.NewScanner(cfg.Storage.BaseDir, string(storage.UploadKindUploads), string(storage.UploadKindMedia))
	paths := scanner.Extract(fragment)
	if len(paths) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(paths, "\n"))
	}
	return nil
}
