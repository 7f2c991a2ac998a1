package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"AgentFeed/pkg/app"
	"AgentFeed/pkg/config"
	"AgentFeed/pkg/database"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/matcher"
	"AgentFeed/pkg/model"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "feedctl",
		Short:        "热点抓取与内容生成的运维工具",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetDefaultConfigPath(), "配置文件路径")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(triggerCmd())
	rootCmd.AddCommand(topicsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(suggestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp 组装应用并在结束后关闭，等待进程内任务完成
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "抓取一次热榜并入库",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				n, err := a.Crawler.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("新增热点话题: %d\n", n)
				return nil
			})
		},
	}
}

func generateCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "为待处理话题生成笔记",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if limit <= 0 {
					limit = a.Config.Scheduler.AutoGenerateLimit
				}
				result, err := a.Generator.ProcessPendingTopics(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Printf("成功: %d 失败: %d\n", result.Success, result.Failed)
				for _, id := range result.NoteIDs {
					fmt.Printf("  笔记 %s\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "本次最多处理的话题数，默认取配置")
	return cmd
}

func triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger [task]",
		Short: "立即执行一个调度任务",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Scheduler.Trigger(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("任务 %s 执行完成\n", args[0])
				return nil
			})
		},
	}
}

func topicsCmd() *cobra.Command {
	var (
		status   string
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "列出热点话题",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				topics, err := a.DB.HotTopics().List(ctx, database.ListFilter{
					Status:   model.TopicStatus(status),
					Category: category,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				for _, t := range topics {
					fmt.Printf("%s  %-10s %-8s %6d  %s\n", t.ID[:8], t.Status, t.Category, t.HeatScore, t.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "按状态过滤")
	cmd.Flags().StringVar(&category, "category", "", "按分类过滤")
	cmd.Flags().IntVar(&limit, "limit", 20, "条数")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "最近24小时的话题与生成统计",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				topics, err := a.DB.HotTopics().Stats(ctx)
				if err != nil {
					return err
				}
				gen, err := a.Generator.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("话题: 共 %d, 待处理 %d, 生成中 %d, 已发布 %d, 失败 %d\n",
					topics.Total, topics.Pending, topics.Generating, topics.Published, topics.Failed)
				fmt.Printf("生成: 今日成功 %d, 今日失败 %d, 累计 %d\n",
					gen.TodayGenerated, gen.TodayFailed, gen.TotalGenerated)
				return nil
			})
		},
	}
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest [category]",
		Short: "查看板块的话题建议",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			cat, err := app.LoadCatalog(cfg)
			if err != nil {
				return err
			}

			id, ok := cat.CanonicalCategory(args[0])
			if !ok {
				return fmt.Errorf("板块不存在: %s", args[0])
			}
			m := matcher.New(cat)
			s := m.Suggest(id)

			fmt.Printf("板块: %s (%s)\n", id, m.Season())
			fmt.Printf("当季话题: %s\n", strings.Join(s.Seasonal, "、"))
			fmt.Printf("标题示例: %s\n", strings.Join(s.Examples, "、"))
			for _, st := range s.SubTopics {
				fmt.Printf("  - %s\n", st.Name)
			}
			return nil
		},
	}
}
