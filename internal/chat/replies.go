package chat

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"finch-forex-backend/internal/intent"
)

// ReplySpec maps action kinds to display-text templates. Operators can
// override the built-in wording with a YAML file; templates execute against
// the resolved intent.Action.
type ReplySpec struct {
	templates map[intent.Kind]*template.Template
}

type replyFile struct {
	Replies map[string]string `yaml:"replies"`
}

// LoadReplySpec reads template overrides from path. A missing file is not an
// error; built-in wording applies for every kind without an override.
func LoadReplySpec(path string) (*ReplySpec, error) {
	spec := &ReplySpec{templates: make(map[intent.Kind]*template.Template)}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return spec, nil
		}
		return nil, err
	}
	var file replyFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("invalid reply spec %s: %w", path, err)
	}
	for kind, text := range file.Replies {
		tmpl, err := template.New(kind).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid reply template %q: %w", kind, err)
		}
		spec.templates[intent.Kind(kind)] = tmpl
	}
	return spec, nil
}

// Render produces the system message text accompanying a resolved action.
func (r *ReplySpec) Render(a *intent.Action) string {
	if r != nil {
		if tmpl, ok := r.templates[a.Kind]; ok {
			var b strings.Builder
			if err := tmpl.Execute(&b, a); err == nil {
				return b.String()
			}
		}
	}
	return defaultReply(a)
}

func defaultReply(a *intent.Action) string {
	switch a.Kind {
	case intent.KindPaymentInitiation:
		p := a.Payment
		if p.Payee.Name != "" {
			return fmt.Sprintf("Here is your payment of %s %s to %s. Please confirm or cancel.", p.Amount, p.SourceCurrency, p.Payee.Name)
		}
		return fmt.Sprintf("Here is your payment of %s %s. Please confirm or cancel.", p.Amount, p.SourceCurrency)
	case intent.KindCurrencyExchange:
		e := a.Exchange
		return fmt.Sprintf("Here is your exchange of %s %s to %s. Please confirm or cancel.", e.Amount, e.SourceCurrency, e.TargetCurrency)
	case intent.KindMultipleBeneficiaries:
		d := a.Disambiguation
		return fmt.Sprintf("I found %d possible recipients. Who did you mean?", len(d.Candidates))
	case intent.KindBeneficiaryList:
		return fmt.Sprintf("You have %d saved beneficiaries.", len(a.Beneficiaries))
	case intent.KindTransactionList:
		return fmt.Sprintf("Here are your %d most recent transactions.", len(a.Transactions))
	case intent.KindRateSnapshot:
		return "Here are the current exchange rates."
	case intent.KindOrderList:
		return fmt.Sprintf("You have %d orders.", len(a.Orders))
	default:
		if a.RawMessage != "" {
			return a.RawMessage
		}
		return "I'm not sure what you meant. Could you rephrase that?"
	}
}
