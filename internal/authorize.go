package internal

import (
	"regexp"
	"strings"

	apperrors "github.com/koopa0/system-design/14-group-chat/pkg/errors"
)

// 加入授權決策表：
//
//	房主存在 | 密碼        | 結果
//	---------+-------------+------------------------------
//	否       | 空白        | 驗證錯誤：建立群組需要密碼
//	否       | 正確        | 成為房主
//	否       | 錯誤        | 驗證錯誤（訊息附上正確密碼）
//	是       | 正確        | 直接加入
//	是       | 空白        | 送出加入請求，等待房主審核
//	是       | 錯誤(非空)  | 通知房主，不建立請求
//
// 房主不存在 / 存在時對錯誤密碼的處理刻意不對稱，必須原樣保留。

// Outcome 授權結果
type Outcome int

const (
	OutcomeInvalid Outcome = iota // 驗證錯誤
	OutcomeBecomeHost
	OutcomeDirectJoin
	OutcomePendingRequest
	OutcomeWrongPassword
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBecomeHost:
		return "become_host"
	case OutcomeDirectJoin:
		return "direct_join"
	case OutcomePendingRequest:
		return "pending_request"
	case OutcomeWrongPassword:
		return "wrong_password"
	default:
		return "invalid"
	}
}

// Decision 授權決策
type Decision struct {
	Outcome Outcome
	Err     error // 只有 OutcomeInvalid 與 OutcomeWrongPassword 會帶錯誤
}

// Authorize 依群組狀態與提交的密碼決定結果（不含使用者名稱驗證）
func Authorize(hostExists bool, password, configured string) Decision {
	blank := strings.TrimSpace(password) == ""

	if !hostExists {
		switch {
		case blank:
			return Decision{
				Outcome: OutcomeInvalid,
				Err:     apperrors.New(apperrors.ErrCodePasswordRequired, "Password is required to create a group"),
			}
		case password != configured:
			return Decision{
				Outcome: OutcomeInvalid,
				Err:     apperrors.Newf(apperrors.ErrCodeWrongPassword, "Incorrect password. The password is: %s", configured),
			}
		default:
			return Decision{Outcome: OutcomeBecomeHost}
		}
	}

	switch {
	case password == configured:
		return Decision{Outcome: OutcomeDirectJoin}
	case blank:
		return Decision{Outcome: OutcomePendingRequest}
	default:
		return Decision{
			Outcome: OutcomeWrongPassword,
			Err:     apperrors.Newf(apperrors.ErrCodeWrongPassword, "Wrong password. The password is: %s", configured),
		}
	}
}

// MinUsernameLength 使用者名稱最短長度
const MinUsernameLength = 3

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidateUsername 驗證並清理使用者名稱
//
// taken 判斷名稱（不分大小寫）是否已被佔用，可為 nil。
// 回傳去除前後空白後的名稱；錯誤一律回報，不做修正。
func ValidateUsername(raw string, taken func(string) bool) (string, error) {
	if raw == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "Username is required")
	}

	clean := strings.TrimSpace(raw)
	if len(clean) < MinUsernameLength {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "Username must be at least 3 characters")
	}

	if !usernamePattern.MatchString(clean) {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "Username can only contain letters and numbers")
	}

	if taken != nil && taken(clean) {
		return "", apperrors.New(apperrors.ErrCodeUsernameTaken, "Username already taken")
	}

	return clean, nil
}
