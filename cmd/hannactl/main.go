// Package main 是 hannactl 命令行客户端的入口点。
package main

import (
	"os"

	"hanna-chat-go/internal/cli"
	"hanna-chat-go/pkg/log"
)

func main() {
	defer log.Sync()
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
