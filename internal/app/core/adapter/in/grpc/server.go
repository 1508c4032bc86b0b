package grpc

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

// ActorMetadataKey 操作人員身分 (由前端的驗證層寫入 metadata)
const ActorMetadataKey = "x-actor"

type GrpcServer struct {
	core   *usecase.CoreUseCase
	logger *zap.Logger
}

func NewGrpcServer(core *usecase.CoreUseCase, logger *zap.Logger) *GrpcServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrpcServer{
		core:   core,
		logger: logger,
	}
}

// actorFromContext 從 incoming metadata 取得操作人員
func actorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(ActorMetadataKey)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// toStatus 將 domain 錯誤分類轉為 gRPC status
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrAlreadyAdjusted):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrUnknownReference):
		code = codes.NotFound
	case errors.Is(err, domain.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrContentionTimeout):
		code = codes.Aborted
	case errors.Is(err, domain.ErrStorageFailure):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// CreateTransaction
//
// 請求: {account_id, type, items: [{product_id, quantity}], amount, notes, original_transaction_id}
// 回應: {transaction, items, prep_items, balance_after}
func (s *GrpcServer) CreateTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := requiredInt64(req, "account_id")
	if err != nil {
		return nil, err
	}
	txType, err := stringField(req, "type")
	if err != nil {
		return nil, err
	}
	items, err := lineItems(req)
	if err != nil {
		return nil, err
	}
	amount, _, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	notes, err := stringField(req, "notes")
	if err != nil {
		return nil, err
	}

	request := domain.TransactionRequest{
		AccountID: accountID,
		Type:      domain.TransactionType(txType),
		Items:     items,
		Amount:    amount,
		Notes:     notes,
		Actor:     actorFromContext(ctx),
	}
	originalID, ok, err := int64Field(req, "original_transaction_id")
	if err != nil {
		return nil, err
	}
	if ok {
		request.OriginalTransactionID = &originalID
	}

	committed, err := s.core.CreateTransaction(ctx, request)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"transaction":   transactionValue(&committed.Transaction),
		"items":         itemValues(committed.Items),
		"prep_items":    prepItemValues(committed.PrepItems),
		"balance_after": money(committed.BalanceAfter),
	})
}

// GetBalance 請求: {account_id} 回應: {account_id, balance}
func (s *GrpcServer) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := requiredInt64(req, "account_id")
	if err != nil {
		return nil, err
	}
	balance, err := s.core.GetBalance(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"account_id": accountID,
		"balance":    money(balance),
	})
}

// ListPrepQueue 請求: {status} (預設 pending) 回應: {items}
func (s *GrpcServer) ListPrepQueue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	prepStatus, err := stringField(req, "status")
	if err != nil {
		return nil, err
	}
	if prepStatus == "" {
		prepStatus = string(domain.PrepStatusPending)
	}
	items, err := s.core.ListPrepQueue(ctx, domain.PrepStatus(prepStatus))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"items": prepItemValues(items)})
}

// CompletePrepItem 請求: {item_id} 回應: {item}，完成人員取自 metadata
func (s *GrpcServer) CompletePrepItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	itemID, err := requiredInt64(req, "item_id")
	if err != nil {
		return nil, err
	}
	item, err := s.core.CompletePrepItem(ctx, itemID, actorFromContext(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"item": prepItemValue(item)})
}

// SetPrepPriority 請求: {item_id, priority} 回應: {item}
func (s *GrpcServer) SetPrepPriority(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	itemID, err := requiredInt64(req, "item_id")
	if err != nil {
		return nil, err
	}
	priority, err := requiredInt64(req, "priority")
	if err != nil {
		return nil, err
	}
	item, err := s.core.SetPrepPriority(ctx, itemID, domain.PrepPriority(priority))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"item": prepItemValue(item)})
}

// GetTransaction 請求: {id} 回應: {transaction, items}
func (s *GrpcServer) GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredInt64(req, "id")
	if err != nil {
		return nil, err
	}
	tran, items, err := s.core.GetTransaction(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"transaction": transactionValue(tran),
		"items":       itemValues(items),
	})
}

// ListTransactions 請求: {account_id, limit} 回應: {transactions}
func (s *GrpcServer) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, _, err := int64Field(req, "account_id")
	if err != nil {
		return nil, err
	}
	limit, _, err := int64Field(req, "limit")
	if err != nil {
		return nil, err
	}
	if limit < 0 || limit > 1000 {
		return nil, invalidArgument("limit must be between 0 and 1000")
	}
	transactions, err := s.core.ListTransactions(ctx, domain.TransactionFilter{AccountID: accountID, Limit: int(limit)})
	if err != nil {
		return nil, toStatus(err)
	}
	values := make([]any, 0, len(transactions))
	for i := range transactions {
		values = append(values, transactionValue(&transactions[i]))
	}
	return newStruct(map[string]any{"transactions": values})
}

// GetSummary 回應: 帳本彙總
func (s *GrpcServer) GetSummary(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	summary, err := s.core.Summary(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(summaryValue(summary))
}

// CreateAccount 請求: {number, name, type, family_members, notes} 回應: {account}
func (s *GrpcServer) CreateAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account := &domain.Account{}
	var err error
	if account.Number, err = stringField(req, "number"); err != nil {
		return nil, err
	}
	if account.Name, err = stringField(req, "name"); err != nil {
		return nil, err
	}
	accountType, err := stringField(req, "type")
	if err != nil {
		return nil, err
	}
	account.Type = domain.AccountType(accountType)
	if account.FamilyMembers, err = stringList(req, "family_members"); err != nil {
		return nil, err
	}
	if account.Notes, err = stringField(req, "notes"); err != nil {
		return nil, err
	}

	if err := s.core.CreateAccount(ctx, account); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("account created",
		zap.Int64("account_id", account.ID),
		zap.String("account_number", account.Number),
		zap.String("actor", actorFromContext(ctx)),
	)
	return newStruct(map[string]any{"account": accountValue(account)})
}

// SaveProduct 目錄維護 請求: {id, name, category, price, requires_prep, track_inventory, inventory_quantity, active}
func (s *GrpcServer) SaveProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	product := &domain.Product{}
	var err error
	if product.ID, _, err = int64Field(req, "id"); err != nil {
		return nil, err
	}
	if product.Name, err = stringField(req, "name"); err != nil {
		return nil, err
	}
	if product.Category, err = stringField(req, "category"); err != nil {
		return nil, err
	}
	if product.Price, _, err = decimalField(req, "price"); err != nil {
		return nil, err
	}
	if product.RequiresPrep, err = boolField(req, "requires_prep"); err != nil {
		return nil, err
	}
	if product.TrackInventory, err = boolField(req, "track_inventory"); err != nil {
		return nil, err
	}
	quantity, _, err := int64Field(req, "inventory_quantity")
	if err != nil {
		return nil, err
	}
	product.InventoryQuantity = int(quantity)
	if product.Active, err = boolField(req, "active"); err != nil {
		return nil, err
	}

	if err := s.core.SaveProduct(ctx, product); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"product": productValue(product)})
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
