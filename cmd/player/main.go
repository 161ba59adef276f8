package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/mine-game/internal/client"
	"github.com/wfunc/mine-game/internal/game"
	"github.com/wfunc/mine-game/internal/heartbeat"
	"github.com/wfunc/mine-game/internal/models"
	"github.com/wfunc/mine-game/internal/urlstate"
	"github.com/wfunc/mine-game/internal/utils"
)

// Player 终端玩家
// 模拟浏览器客户端的完整流程：认领ID、心跳保活、翻格、提现、生成结果链接。
type Player struct {
	api     *client.Client
	flow    *game.Flow
	monitor *heartbeat.Monitor
	board   *game.Board
	logger  *zap.Logger

	gameID      string
	token       string
	fingerprint string
	resultURL   string
}

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "游戏服务地址")
		gameID    = flag.String("id", "", "4位游戏ID")
		baseURL   = flag.String("result-base", "http://localhost:8080/play", "结果链接的基础URL")
		interval  = flag.Duration("heartbeat", 30*time.Second, "心跳间隔")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	p := &Player{
		api:    client.New(*serverURL),
		flow:   game.NewFlow(logger),
		logger: logger,
	}

	// 指纹模拟浏览器指纹，进程内稳定
	fingerprint, err := utils.GenerateRandomString(16)
	if err != nil {
		fmt.Printf("生成指纹失败: %v\n", err)
		os.Exit(1)
	}
	p.fingerprint = fingerprint

	ctx := context.Background()

	id := *gameID
	reader := bufio.NewReader(os.Stdin)
	for id == "" {
		fmt.Print("请输入4位游戏ID: ")
		line, _ := reader.ReadString('\n')
		id = strings.TrimSpace(line)
	}

	if err := p.claim(ctx, id, *interval, *baseURL); err != nil {
		fmt.Printf("认领失败: %v\n", err)
		os.Exit(1)
	}

	p.repl(ctx, reader, *baseURL)
}

// claim 认领游戏ID并启动心跳
func (p *Player) claim(ctx context.Context, gameID string, interval time.Duration, baseURL string) error {
	p.flow.SetGameID(gameID)
	if err := p.flow.Trigger(ctx, game.EventSubmitID); err != nil {
		return err
	}

	result, params, err := p.api.Claim(ctx, gameID, p.fingerprint)
	if err != nil {
		p.flow.Trigger(ctx, game.EventClaimFailed)
		return err
	}

	p.gameID = gameID
	p.token = result.SessionToken
	p.flow.SetSessionToken(result.SessionToken)
	if err := p.flow.Trigger(ctx, game.EventClaimOK); err != nil {
		return err
	}

	p.board = game.NewBoard(params.GridSize, params.MineCount, params.MaxReward)

	p.monitor = heartbeat.NewMonitor(&heartbeat.Config{
		Beater:   p.api,
		Logger:   p.logger,
		Interval: interval,
		OnInvalid: func() {
			p.reportInvalidation(context.Background())
			p.flow.Trigger(context.Background(), game.EventSessionLost)
		},
	})
	p.monitor.Start(ctx, p.token)

	if result.Resumed {
		fmt.Println("已恢复此浏览器之前的会话（棋盘重新开始）")
	}
	fmt.Printf("认领成功！%d格，%d颗雷，翻开全部安全格可得 %.2f\n",
		params.GridSize, params.MineCount, params.MaxReward)
	fmt.Println("命令: reveal <0-24> | cashout | board | pause | resume | quit")
	return nil
}

// reportInvalidation 心跳失效后区分两种终局：别处完成 vs 被接管/删除
func (p *Player) reportInvalidation(ctx context.Context) {
	snap, err := p.api.Check(ctx, p.token)
	if err == nil && snap.Found && snap.GameResult != nil {
		fmt.Printf("\n⚠️  游戏已在别处结束：%s，金额 %.2f\n", *snap.GameResult, snap.Amount)
		return
	}
	fmt.Println("\n⚠️  会话已失效：此ID可能已在其他浏览器中打开")
}

// repl 命令循环
func (p *Player) repl(ctx context.Context, reader *bufio.Reader, baseURL string) {
	for {
		if p.flow.IsTerminal() {
			p.printResult()
			return
		}

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "reveal", "r":
			if len(fields) < 2 {
				fmt.Println("用法: reveal <格子索引>")
				continue
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("格子索引必须是数字")
				continue
			}
			p.reveal(ctx, idx, baseURL)
		case "cashout", "c":
			p.cashOut(ctx, baseURL)
		case "board", "b":
			p.printBoard()
		case "pause":
			p.monitor.Suspend()
			fmt.Println("心跳已暂停（模拟页面切后台）")
		case "resume":
			p.monitor.Resume()
			fmt.Println("心跳已恢复")
		case "quit", "q":
			p.monitor.Stop()
			fmt.Println("退出。会话保持活跃，可在过期前重新进入。")
			return
		default:
			fmt.Println("未知命令。可用: reveal <n> | cashout | board | pause | resume | quit")
		}
	}
}

// reveal 翻开一格
func (p *Player) reveal(ctx context.Context, idx int, baseURL string) {
	outcome, err := p.board.Reveal(idx)
	if err != nil {
		fmt.Printf("无法翻开: %v\n", err)
		return
	}

	if outcome.Mine {
		fmt.Printf("💥 第%d格是雷！游戏结束。\n", idx)
		p.finish(ctx, models.GameResultBusted, 0, baseURL)
		p.flow.Trigger(ctx, game.EventBust)
		return
	}

	fmt.Printf("✅ 安全！已翻开%d格，当前可提现 %.2f\n",
		outcome.SafeCount, outcome.CurrentReward)

	if outcome.Finished {
		fmt.Printf("🎉 全部安全格翻完！获得最大奖金 %.2f\n", outcome.CurrentReward)
		p.finish(ctx, models.GameResultCashedOut, outcome.CurrentReward, baseURL)
		p.flow.SetFinalAmount(outcome.CurrentReward)
		p.flow.Trigger(ctx, game.EventFullClear)
	}
}

// cashOut 提现结算
func (p *Player) cashOut(ctx context.Context, baseURL string) {
	amount, err := p.board.CashOut()
	if err != nil {
		fmt.Printf("无法提现: %v\n", err)
		return
	}

	fmt.Printf("💰 提现 %.2f\n", amount)
	p.finish(ctx, models.GameResultCashedOut, amount, baseURL)
	p.flow.SetFinalAmount(amount)
	p.flow.Trigger(ctx, game.EventCashOut)
}

// finish 提交结果并生成结果链接
func (p *Player) finish(ctx context.Context, result models.GameResult, amount float64, baseURL string) {
	p.monitor.Stop()

	if err := p.api.Complete(ctx, p.gameID, p.token, result, amount); err != nil {
		fmt.Printf("提交结果失败: %v\n", err)
	}

	url, err := urlstate.AppendTo(baseURL, &urlstate.Result{
		GameID: p.gameID,
		Status: result,
		Amount: amount,
	})
	if err == nil {
		p.resultURL = url
	}
}

// printBoard 打印棋盘
func (p *Player) printBoard() {
	cols := 5
	rows := (p.board.GridSize + cols - 1) / cols
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			idx := y*cols + x
			if idx >= p.board.GridSize {
				break
			}
			switch {
			case !p.board.IsRevealed(idx):
				fmt.Printf("[%2d] ", idx)
			case p.board.IsMine(idx):
				fmt.Print("  *  ")
			default:
				fmt.Print("  .  ")
			}
		}
		fmt.Println()
	}
	fmt.Printf("已翻开%d格，当前可提现 %.2f\n", p.board.SafeCount(), p.board.CurrentReward())
}

// printResult 打印终局信息
func (p *Player) printResult() {
	switch p.flow.GetState() {
	case game.FlowCashedOut:
		fmt.Printf("游戏结束：提现 %.2f\n", p.flow.FinalAmount())
	case game.FlowBusted:
		fmt.Println("游戏结束：踩雷，金额归零")
	case game.FlowInvalid:
		fmt.Println("游戏结束：会话失效")
	}
	if p.resultURL != "" {
		fmt.Printf("结果链接（发给管理员核销）: %s\n", p.resultURL)
	}
}
