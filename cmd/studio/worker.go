package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-studio/internal/store/rabbitmq"
)

var workerCMD = &cobra.Command{
	Use:   "worker",
	Short: "run queued chat generations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := initialize()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
		if err != nil {
			return err
		}
		defer consumer.Close()

		return consumer.Run(ctx, a.chat.GenerateForJob)
	},
}

func init() {
	rootCMD.AddCommand(workerCMD)
}
