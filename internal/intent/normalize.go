package intent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Wire values of intent_type the processor is known to emit.
const (
	typePayment         = "payment"
	typeExchange        = "currency_exchange"
	typeBeneficiaryList = "beneficiary_list"
	typeTransactionList = "transaction_list"
	typeRates           = "exchange_rates"
	typeOrderList       = "order_list"
)

const defaultCurrency = "USD"

// Normalize maps a raw processor response to exactly one Action variant.
// It performs no I/O, never fails, and is deterministic: malformed or
// partially missing payloads degrade to documented defaults ('0' for
// amounts and fees, the request currency for a missing target currency,
// '' for names) rather than errors.
func Normalize(raw RawResult) Action {
	result := raw.Result
	if result == nil {
		result = map[string]any{}
	}
	switch raw.IntentType {
	case typePayment:
		if isDisambiguation(raw, result) {
			return Action{Kind: KindMultipleBeneficiaries, Disambiguation: normalizeDisambiguation(result)}
		}
		return Action{Kind: KindPaymentInitiation, Payment: normalizePayment(raw, result)}
	case typeExchange:
		return Action{Kind: KindCurrencyExchange, Exchange: normalizeExchange(raw, result)}
	case typeBeneficiaryList:
		return Action{Kind: KindBeneficiaryList, Beneficiaries: normalizeBeneficiaries(result)}
	case typeTransactionList:
		return Action{Kind: KindTransactionList, Transactions: normalizeTransactions(result)}
	case typeRates:
		return Action{Kind: KindRateSnapshot, Rates: normalizeRates(result)}
	case typeOrderList:
		return Action{Kind: KindOrderList, Orders: normalizeOrders(result)}
	default:
		return Action{Kind: KindUnknown, RawMessage: rawMessage(raw, result)}
	}
}

func isDisambiguation(raw RawResult, result map[string]any) bool {
	if strField(result, "type") == "multiple_beneficiaries" {
		return true
	}
	if raw.RequiresClarification {
		if _, ok := result["beneficiaries"]; ok {
			return true
		}
	}
	return false
}

func normalizePayment(raw RawResult, result map[string]any) *Payment {
	source := currencyField(result, defaultCurrency, "from_currency", "currency")
	return &Payment{
		PaymentID:      paymentID(raw, result),
		Amount:         decimalField(result, "amount"),
		SourceCurrency: source,
		TargetCurrency: currencyField(result, source, "to_currency", "target_currency"),
		ExchangeRate:   decimalField(result, "exchange_rate", "rate"),
		Fees:           decimalField(result, "fees", "fee"),
		TotalCost:      decimalField(result, "total_cost"),
		Payee:          normalizePayee(result),
		Confidence:     confidenceMap(result),
		Status:         statusField(result),
	}
}

func normalizeExchange(raw RawResult, result map[string]any) *Exchange {
	source := currencyField(result, defaultCurrency, "from_currency", "currency")
	return &Exchange{
		PaymentID:      paymentID(raw, result),
		Amount:         decimalField(result, "amount"),
		SourceCurrency: source,
		TargetCurrency: currencyField(result, source, "to_currency", "target_currency"),
		ExchangeRate:   decimalField(result, "exchange_rate", "rate"),
		Fees:           decimalField(result, "fees", "fee"),
		TotalCost:      decimalField(result, "total_cost"),
		Confidence:     confidenceMap(result),
		Status:         statusField(result),
	}
}

func normalizeDisambiguation(result map[string]any) *Disambiguation {
	d := &Disambiguation{
		Amount:          decimalField(result, "amount"),
		Currency:        currencyField(result, defaultCurrency, "currency", "from_currency"),
		OriginalRequest: strField(result, "original_request"),
		Candidates:      []Candidate{},
	}
	for _, item := range listField(result, "beneficiaries", "candidates") {
		d.Candidates = append(d.Candidates, normalizeCandidate(item))
	}
	return d
}

// normalizeCandidate accepts both observed casings of the nested beneficiary
// object (`Beneficiary` and `beneficiary`) as well as a flat candidate.
func normalizeCandidate(item map[string]any) Candidate {
	obj := item
	if nested := mapField(item, "beneficiary"); nested != nil {
		obj = nested
	} else if nested := mapField(item, "Beneficiary"); nested != nil {
		obj = nested
	}
	return Candidate{
		ID:         strField(obj, "id"),
		Name:       strField(obj, "name"),
		BankInfo:   strField(obj, "bank_info"),
		Confidence: floatField(obj, "confidence", "match"),
	}
}

func normalizePayee(result map[string]any) Payee {
	p := Payee{Name: strField(result, "beneficiary_name")}
	if obj := mapField(result, "beneficiary"); obj != nil {
		if p.Name == "" {
			p.Name = strField(obj, "name")
		}
		p.ID = strField(obj, "id")
		p.BankInfo = strField(obj, "bank_info")
		p.Match = floatField(obj, "match", "confidence")
	}
	if p.BankInfo == "" {
		p.BankInfo = strField(result, "bank_info")
	}
	return p
}

func normalizeBeneficiaries(result map[string]any) []BeneficiaryEntry {
	out := []BeneficiaryEntry{}
	for _, item := range listField(result, "beneficiaries", "entries") {
		out = append(out, BeneficiaryEntry{
			ID:       strField(item, "id"),
			Name:     strField(item, "name"),
			BankInfo: strField(item, "bank_info"),
			Currency: strField(item, "currency"),
		})
	}
	return out
}

func normalizeTransactions(result map[string]any) []TransactionEntry {
	out := []TransactionEntry{}
	for _, item := range listField(result, "transactions", "entries") {
		entry := TransactionEntry{
			ID:           strField(item, "id"),
			Date:         strField(item, "date"),
			Amount:       decimalField(item, "amount"),
			Currency:     currencyField(item, defaultCurrency, "currency"),
			Counterparty: strField(item, "counterparty"),
			Type:         strField(item, "type"),
			Status:       strField(item, "status"),
		}
		if entry.Counterparty == "" {
			if obj := mapField(item, "beneficiary"); obj != nil {
				entry.Counterparty = strField(obj, "name")
			}
		}
		out = append(out, entry)
	}
	return out
}

func normalizeRates(result map[string]any) []RateEntry {
	out := []RateEntry{}
	for _, item := range listField(result, "rates", "entries") {
		out = append(out, RateEntry{
			Pair:   strField(item, "pair"),
			Rate:   decimalField(item, "rate"),
			Change: strField(item, "change"),
		})
	}
	return out
}

func normalizeOrders(result map[string]any) []OrderEntry {
	out := []OrderEntry{}
	for _, item := range listField(result, "orders", "entries") {
		out = append(out, OrderEntry{
			ID:          strField(item, "id"),
			Description: strField(item, "description"),
			Amount:      decimalField(item, "amount"),
			Currency:    currencyField(item, defaultCurrency, "currency"),
			Status:      strField(item, "status"),
			Type:        strField(item, "type"),
			Rate:        strField(item, "rate"),
		})
	}
	return out
}

// paymentID prefers the id nested in result over the top-level one; the
// processor has been observed emitting it at either level.
func paymentID(raw RawResult, result map[string]any) string {
	if id := strField(result, "payment_id"); id != "" {
		return id
	}
	return strings.TrimSpace(raw.PaymentID)
}

func rawMessage(raw RawResult, result map[string]any) string {
	if m := strField(result, "message"); m != "" {
		return m
	}
	if m := strField(result, "text"); m != "" {
		return m
	}
	return strings.TrimSpace(raw.Message)
}

func statusField(result map[string]any) string {
	if s := strField(result, "status"); s != "" {
		return s
	}
	return "draft"
}

func confidenceMap(result map[string]any) Confidence {
	obj := mapField(result, "confidence")
	if obj == nil {
		return Confidence{}
	}
	return Confidence{
		Amount:      floatField(obj, "amount"),
		Currency:    floatField(obj, "currency"),
		Beneficiary: floatField(obj, "beneficiary"),
	}
}

// ---- field extraction helpers ----

func strField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// decimalField renders amounts, fees and rates as decimal strings, defaulting
// to "0" when absent. json.Number values keep their wire text.
func decimalField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return "0"
}

func currencyField(m map[string]any, fallback string, keys ...string) string {
	if c := strField(m, keys...); c != "" {
		return strings.ToUpper(c)
	}
	return fallback
}

func floatField(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func listField(m map[string]any, keys ...string) []map[string]any {
	for _, k := range keys {
		items, ok := m[k].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(items))
		for _, it := range items {
			if obj, ok := it.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	}
	return nil
}
