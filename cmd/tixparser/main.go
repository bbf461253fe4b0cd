package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// exitError 携带进程退出码；报告已经输出，不再额外打印错误。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// execute 运行一次命令并返回退出码：0 成功，1 存在失败条目，2 参数/用法错误。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &rootOptions{log: zap.NewNop()}
	root := newRootCommand(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	// 出错时 cobra 不会调用 PostRun，因此统一在这里刷日志。
	_ = opts.log.Sync()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "错误：%v\n", err)
	return 2
}
