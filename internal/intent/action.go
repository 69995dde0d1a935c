package intent

// Kind tags the Action union. Exactly one payload field is populated per kind.
type Kind string

const (
	KindPaymentInitiation     Kind = "payment_initiation"
	KindCurrencyExchange      Kind = "currency_exchange"
	KindMultipleBeneficiaries Kind = "multiple_beneficiaries"
	KindBeneficiaryList       Kind = "beneficiary_list"
	KindTransactionList       Kind = "transaction_list"
	KindRateSnapshot          Kind = "rate_snapshot"
	KindOrderList             Kind = "order_list"
	KindUnknown               Kind = "unknown"
)

// Confidence mirrors the processor's per-field confidence map. Values are in [0,1].
type Confidence struct {
	Amount      float64 `json:"amount"`
	Currency    float64 `json:"currency"`
	Beneficiary float64 `json:"beneficiary"`
}

// Payee is the resolved recipient on a payment card.
type Payee struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	BankInfo string  `json:"bankInfo,omitempty"`
	Match    float64 `json:"match,omitempty"`
}

// Payment holds a confirmable payment initiation. All monetary fields are
// decimal strings; they are never parsed into floats.
type Payment struct {
	PaymentID      string     `json:"paymentId"`
	Amount         string     `json:"amount"`
	SourceCurrency string     `json:"sourceCurrency"`
	TargetCurrency string     `json:"targetCurrency"`
	ExchangeRate   string     `json:"exchangeRate"`
	Fees           string     `json:"fees"`
	TotalCost      string     `json:"totalCost"`
	Payee          Payee      `json:"payee"`
	Confidence     Confidence `json:"confidence"`
	Status         string     `json:"status"`
}

// Exchange is a currency conversion card: the payment fields without a payee.
type Exchange struct {
	PaymentID      string     `json:"paymentId"`
	Amount         string     `json:"amount"`
	SourceCurrency string     `json:"sourceCurrency"`
	TargetCurrency string     `json:"targetCurrency"`
	ExchangeRate   string     `json:"exchangeRate"`
	Fees           string     `json:"fees"`
	TotalCost      string     `json:"totalCost"`
	Confidence     Confidence `json:"confidence"`
	Status         string     `json:"status"`
}

// Candidate is one beneficiary option offered for disambiguation.
type Candidate struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	BankInfo   string  `json:"bankInfo,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Disambiguation asks the user to pick one of several matched beneficiaries.
type Disambiguation struct {
	Amount          string      `json:"amount"`
	Currency        string      `json:"currency"`
	OriginalRequest string      `json:"originalRequest"`
	Candidates      []Candidate `json:"candidates"`
}

type BeneficiaryEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BankInfo string `json:"bankInfo,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type TransactionEntry struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Counterparty string `json:"counterparty"`
	Type         string `json:"type"`
	Status       string `json:"status"`
}

type RateEntry struct {
	Pair   string `json:"pair"`
	Rate   string `json:"rate"`
	Change string `json:"change"`
}

type OrderEntry struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Rate        string `json:"rate,omitempty"`
}

// Action is the closed union the normalizer produces. Kind determines which
// payload field is set; the rest stay nil.
type Action struct {
	Kind           Kind               `json:"kind"`
	Payment        *Payment           `json:"payment,omitempty"`
	Exchange       *Exchange          `json:"exchange,omitempty"`
	Disambiguation *Disambiguation    `json:"disambiguation,omitempty"`
	Beneficiaries  []BeneficiaryEntry `json:"beneficiaries,omitempty"`
	Transactions   []TransactionEntry `json:"transactions,omitempty"`
	Rates          []RateEntry        `json:"rates,omitempty"`
	Orders         []OrderEntry       `json:"orders,omitempty"`
	RawMessage     string             `json:"rawMessage,omitempty"`
}

// PaymentID returns the confirmable id carried by the action, if any.
func (a *Action) PaymentID() string {
	switch a.Kind {
	case KindPaymentInitiation:
		if a.Payment != nil {
			return a.Payment.PaymentID
		}
	case KindCurrencyExchange:
		if a.Exchange != nil {
			return a.Exchange.PaymentID
		}
	}
	return ""
}

// SetStatus updates the card's logical status in place. Only confirmable
// variants carry one; other kinds are untouched.
func (a *Action) SetStatus(status string) {
	switch a.Kind {
	case KindPaymentInitiation:
		if a.Payment != nil {
			a.Payment.Status = status
		}
	case KindCurrencyExchange:
		if a.Exchange != nil {
			a.Exchange.Status = status
		}
	}
}

// Clone returns a deep copy sharing no memory with the receiver. Nil in,
// nil out.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	out := *a
	if a.Payment != nil {
		p := *a.Payment
		out.Payment = &p
	}
	if a.Exchange != nil {
		e := *a.Exchange
		out.Exchange = &e
	}
	if a.Disambiguation != nil {
		d := *a.Disambiguation
		d.Candidates = append([]Candidate(nil), a.Disambiguation.Candidates...)
		out.Disambiguation = &d
	}
	if a.Beneficiaries != nil {
		out.Beneficiaries = append([]BeneficiaryEntry(nil), a.Beneficiaries...)
	}
	if a.Transactions != nil {
		out.Transactions = append([]TransactionEntry(nil), a.Transactions...)
	}
	if a.Rates != nil {
		out.Rates = append([]RateEntry(nil), a.Rates...)
	}
	if a.Orders != nil {
		out.Orders = append([]OrderEntry(nil), a.Orders...)
	}
	return &out
}

// RawResult is the loosely-typed processor response before normalization.
// Result's shape varies by IntentType; the gateway decodes it with
// json.Number so decimal literals keep their exact text.
type RawResult struct {
	IntentType            string         `json:"intent_type"`
	Confidence            float64        `json:"confidence"`
	RequiresClarification bool           `json:"requires_clarification"`
	PaymentID             string         `json:"payment_id"`
	Message               string         `json:"message"`
	Result                map[string]any `json:"result"`
}
