package grpc

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// 請求/回應都是 google.protobuf.Struct，欄位名稱使用 snake_case
// 金額一律以字串傳遞 (例如 "12.50")，避免浮點誤差

const maxSafeInteger = 1 << 53

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

func field(req *structpb.Struct, key string) (*structpb.Value, bool) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

// int64Field 讀取整數欄位，接受 number 或十進位字串
func int64Field(req *structpb.Struct, key string) (int64, bool, error) {
	v, ok := field(req, key)
	if !ok {
		return 0, false, nil
	}
	return toInt64(key, v)
}

func toInt64(key string, v *structpb.Value) (int64, bool, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
			return 0, true, invalidArgument("%s must be an integer", key)
		}
		return int64(f), true, nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return 0, true, invalidArgument("%s must be an integer", key)
		}
		return n, true, nil
	default:
		return 0, true, invalidArgument("%s must be an integer", key)
	}
}

func requiredInt64(req *structpb.Struct, key string) (int64, error) {
	n, ok, err := int64Field(req, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, invalidArgument("%s is required", key)
	}
	return n, nil
}

func stringField(req *structpb.Struct, key string) (string, error) {
	v, ok := field(req, key)
	if !ok {
		return "", nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", invalidArgument("%s must be a string", key)
	}
	return s.StringValue, nil
}

// decimalField 金額欄位，建議以字串傳遞；number 也接受
func decimalField(req *structpb.Struct, key string) (decimal.Decimal, bool, error) {
	v, ok := field(req, key)
	if !ok {
		return decimal.Zero, false, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, true, invalidArgument("%s is not a valid amount", key)
		}
		return d, true, nil
	case *structpb.Value_NumberValue:
		if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
			return decimal.Zero, true, invalidArgument("%s is not a valid amount", key)
		}
		return decimal.NewFromFloat(kind.NumberValue), true, nil
	default:
		return decimal.Zero, true, invalidArgument("%s is not a valid amount", key)
	}
}

func stringList(req *structpb.Struct, key string) ([]string, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, invalidArgument("%s must be a list", key)
	}
	result := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		s, isString := item.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return nil, invalidArgument("%s must contain strings", key)
		}
		result = append(result, s.StringValue)
	}
	return result, nil
}

// lineItems items: [{product_id, quantity}]
func lineItems(req *structpb.Struct) ([]domain.LineItem, error) {
	v, ok := field(req, "items")
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, invalidArgument("items must be a list")
	}
	items := make([]domain.LineItem, 0, len(list.GetValues()))
	for i, value := range list.GetValues() {
		obj := value.GetStructValue()
		if obj == nil {
			return nil, invalidArgument("items[%d] must be an object", i)
		}
		productID, err := requiredInt64(obj, "product_id")
		if err != nil {
			return nil, err
		}
		quantity, err := requiredInt64(obj, "quantity")
		if err != nil {
			return nil, err
		}
		if quantity < math.MinInt32 || quantity > math.MaxInt32 {
			return nil, invalidArgument("items[%d].quantity out of range", i)
		}
		items = append(items, domain.LineItem{ProductID: productID, Quantity: int(quantity)})
	}
	return items, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.CurrencyPlaces)
}

func transactionValue(t *domain.Transaction) map[string]any {
	m := map[string]any{
		"id":                t.ID,
		"account_id":        t.AccountID,
		"type":              string(t.Type),
		"amount":            money(t.Amount),
		"created_at":        formatTime(t.CreatedAt),
		"created_by":        t.CreatedBy,
		"notes":             t.Notes,
		"has_been_adjusted": t.HasBeenAdjusted,
	}
	if t.OriginalTransactionID != nil {
		m["original_transaction_id"] = *t.OriginalTransactionID
	}
	return m
}

func itemValues(items []domain.TransactionItem) []any {
	values := make([]any, 0, len(items))
	for _, item := range items {
		values = append(values, map[string]any{
			"id":           item.ID,
			"product_id":   item.ProductID,
			"product_name": item.ProductName,
			"unit_price":   money(item.UnitPrice),
			"quantity":     item.Quantity,
			"line_total":   money(item.LineTotal),
		})
	}
	return values
}

func prepItemValue(item *domain.PrepQueueItem) map[string]any {
	m := map[string]any{
		"id":                  item.ID,
		"transaction_id":      item.TransactionID,
		"transaction_item_id": item.TransactionItemID,
		"product_name":        item.ProductName,
		"quantity":            item.Quantity,
		"account_name":        item.AccountName,
		"status":              string(item.Status),
		"priority":            int(item.Priority),
		"ordered_at":          formatTime(item.OrderedAt),
	}
	if item.CompletedAt != nil {
		m["completed_at"] = formatTime(*item.CompletedAt)
		m["completed_by"] = item.CompletedBy
	}
	return m
}

func prepItemValues(items []domain.PrepQueueItem) []any {
	values := make([]any, 0, len(items))
	for i := range items {
		values = append(values, prepItemValue(&items[i]))
	}
	return values
}

func accountValue(a *domain.Account) map[string]any {
	members := make([]any, 0, len(a.FamilyMembers))
	for _, m := range a.FamilyMembers {
		members = append(members, m)
	}
	return map[string]any{
		"id":             a.ID,
		"number":         a.Number,
		"name":           a.Name,
		"type":           string(a.Type),
		"active":         a.Active,
		"family_members": members,
		"notes":          a.Notes,
		"created_at":     formatTime(a.CreatedAt),
	}
}

func summaryValue(s domain.LedgerSummary) map[string]any {
	return map[string]any{
		"total_accounts":            s.TotalAccounts,
		"total_prepaid":             money(s.TotalPrepaid),
		"total_spent":               money(s.TotalSpent),
		"total_remaining":           money(s.TotalRemaining),
		"negative_balance_accounts": s.NegativeBalanceAccounts,
		"total_negative_amount":     money(s.TotalNegativeAmount),
		"transaction_count":         s.TransactionCount,
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

func boolField(req *structpb.Struct, key string) (bool, error) {
	v, ok := field(req, key)
	if !ok {
		return false, nil
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		return false, invalidArgument("%s must be a boolean", key)
	}
	return b.BoolValue, nil
}

func productValue(p *domain.Product) map[string]any {
	return map[string]any{
		"id":                 p.ID,
		"name":               p.Name,
		"category":           p.Category,
		"price":              money(p.Price),
		"requires_prep":      p.RequiresPrep,
		"track_inventory":    p.TrackInventory,
		"inventory_quantity": p.InventoryQuantity,
		"active":             p.Active,
	}
}
