package domain

import (
	"errors"
	"fmt"
)

// 錯誤分類 (Kind)，呼叫端以 errors.Is 判斷
var (
	// ErrValidation 輸入格式錯誤或超出範圍，寫入前即拒絕
	ErrValidation = errors.New("validation error")

	// ErrUnknownReference 帳戶、商品或原始交易不存在
	ErrUnknownReference = errors.New("unknown reference")

	// ErrAlreadyAdjusted 原始交易已被調整過
	ErrAlreadyAdjusted = errors.New("transaction already adjusted")

	// ErrContentionTimeout 並發提交時鎖等待逾時或序列化失敗，可重試
	ErrContentionTimeout = errors.New("contention timeout")

	// ErrStorageFailure 儲存層不可用，可重試
	ErrStorageFailure = errors.New("storage failure")
)

var (
	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = fmt.Errorf("%w: account not found", ErrUnknownReference)

	// ErrProductNotFound 找不到商品
	ErrProductNotFound = fmt.Errorf("%w: product not found", ErrUnknownReference)

	// ErrTransactionNotFound 找不到交易
	ErrTransactionNotFound = fmt.Errorf("%w: transaction not found", ErrUnknownReference)

	// ErrPrepItemNotFound 找不到備餐項目
	ErrPrepItemNotFound = fmt.Errorf("%w: prep item not found", ErrUnknownReference)

	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = fmt.Errorf("%w: amount must be positive", ErrValidation)

	// ErrAmountOutOfRange 金額超出允許範圍
	ErrAmountOutOfRange = fmt.Errorf("%w: amount out of range", ErrValidation)

	// ErrAmountPrecision 金額最多兩位小數
	ErrAmountPrecision = fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)


	// ErrInvalidTransactionType 不支援的交易類型
	ErrInvalidTransactionType = fmt.Errorf("%w: invalid transaction type", ErrValidation)

	// ErrEmptyPurchase 購買必須至少一個品項
	ErrEmptyPurchase = fmt.Errorf("%w: purchase requires at least one item", ErrValidation)

	// ErrInvalidQuantity 數量超出範圍
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be between 1 and 100", ErrValidation)

	// ErrNotesTooLong 備註過長
	ErrNotesTooLong = fmt.Errorf("%w: notes must not exceed 500 characters", ErrValidation)

	// ErrMissingActor 缺少操作人員身分
	ErrMissingActor = fmt.Errorf("%w: actor identity is required", ErrValidation)

	// ErrInvalidPrepStatus 不支援的備餐狀態
	ErrInvalidPrepStatus = fmt.Errorf("%w: invalid prep status", ErrValidation)

	// ErrInvalidPriority 不支援的備餐優先度
	ErrInvalidPriority = fmt.Errorf("%w: priority must be 1 (rush) or 2 (normal)", ErrValidation)

	// ErrPrepItemNotPending 只有待處理的項目可以調整優先度
	ErrPrepItemNotPending = fmt.Errorf("%w: prep item is not pending", ErrValidation)

	// ErrInvalidAccount 帳戶資料不合法
	ErrInvalidAccount = fmt.Errorf("%w: invalid account", ErrValidation)

	// ErrDuplicateKey 唯一鍵衝突 (儲存層回報)
	ErrDuplicateKey = fmt.Errorf("%w: duplicate key", ErrValidation)

	// ErrAccountAlreadyExists 帳號已存在
	ErrAccountAlreadyExists = fmt.Errorf("%w: account already exists", ErrValidation)

	// ErrInvalidProduct 商品資料不合法
	ErrInvalidProduct = fmt.Errorf("%w: invalid product", ErrValidation)

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = fmt.Errorf("%w: wal write failed", ErrStorageFailure)
)

// IsRetryable 回傳錯誤是否可由呼叫端重試 (核心本身不自動重試)
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContentionTimeout) || errors.Is(err, ErrStorageFailure)
}
