package urlstate

import (
	"fmt"
	"net/url"
	"strconv"

	apperrors "github.com/wfunc/mine-game/internal/errors"
	"github.com/wfunc/mine-game/internal/models"
)

// 查询参数名
const (
	paramID     = "id"
	paramStatus = "status"
	paramAmount = "amount"
)

// Result 通过URL传递的终局结果
// 玩家结束后把带参数的链接发给管理员核销，金额固定保留两位小数。
type Result struct {
	GameID string
	Status models.GameResult
	Amount float64
}

// Encode 把终局结果编码为查询串（不含问号）
func Encode(r *Result) string {
	v := url.Values{}
	v.Set(paramID, r.GameID)
	v.Set(paramStatus, string(r.Status))
	v.Set(paramAmount, fmt.Sprintf("%.2f", r.Amount))
	return v.Encode()
}

// AppendTo 把终局结果追加到基础URL上
func AppendTo(base string, r *Result) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInvalidParam, "基础URL无效")
	}
	u.RawQuery = Encode(r)
	return u.String(), nil
}

// Parse 从查询串解析终局结果
// 三个参数缺一不可；状态必须是已知的终局结果；金额必须是合法数字。
func Parse(rawQuery string) (*Result, error) {
	v, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidParam, "查询串解析失败")
	}

	gameID := v.Get(paramID)
	status := v.Get(paramStatus)
	amountStr := v.Get(paramAmount)
	if gameID == "" || status == "" || amountStr == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "结果参数不完整")
	}

	result := models.GameResult(status)
	if result != models.GameResultCashedOut && result != models.GameResultBusted {
		return nil, apperrors.New(apperrors.ErrInvalidParam, fmt.Sprintf("未知的结果状态: %s", status))
	}

	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil || amount < 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, fmt.Sprintf("金额无效: %s", amountStr))
	}

	return &Result{
		GameID: gameID,
		Status: result,
		Amount: amount,
	}, nil
}

// ParseURL 从完整URL解析终局结果
func ParseURL(rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidParam, "URL解析失败")
	}
	return Parse(u.RawQuery)
}
