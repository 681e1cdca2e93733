package reminder

import "strings"

// defaultInstructions maps a country tag to its payment instructions block.
var defaultInstructions = map[string]string{
	"MX": "💳 *México*\nTransferencia SPEI a la CLABE registrada a nombre del titular.\nTambién puedes depositar en OXXO con el número de tarjeta que te compartimos.",
	"CO": "💳 *Colombia*\nTransferencia por Nequi o Bancolombia a la cuenta registrada.",
	"PE": "💳 *Perú*\nPago por Yape o Plin al número registrado, o transferencia BCP.",
	"AR": "💳 *Argentina*\nTransferencia al CBU/alias registrado o pago por Mercado Pago.",
	"CL": "💳 *Chile*\nTransferencia electrónica a la cuenta RUT registrada.",
	"US": "💳 *Estados Unidos*\nPago por Zelle al correo o número registrado.",
	"ES": "💳 *España*\nBizum o transferencia al IBAN registrado.",
}

const genericInstructions = "💬 Escríbenos para acordar la forma de pago que más te convenga."

// Instructions resolves the payment instructions for a country flag. The
// lookup is exact after normalising the tag; unknown tags get the generic
// block. Overrides take precedence over the built-in table.
type Instructions struct {
	overrides map[string]string
}

func NewInstructions(overrides map[string]string) Instructions {
	norm := make(map[string]string, len(overrides))
	for k, v := range overrides {
		norm[NormalizeFlag(k)] = v
	}
	return Instructions{overrides: norm}
}

func (in Instructions) For(flag string) string {
	tag := NormalizeFlag(flag)
	if text, ok := in.overrides[tag]; ok {
		return text
	}
	if text, ok := defaultInstructions[tag]; ok {
		return text
	}
	return genericInstructions
}

// NormalizeFlag accepts either an ISO code ("mx") or a flag emoji ("🇲🇽")
// and returns the upper-case ISO code.
func NormalizeFlag(flag string) string {
	flag = strings.TrimSpace(flag)
	var b strings.Builder
	for _, r := range flag {
		if r >= 0x1F1E6 && r <= 0x1F1FF {
			b.WriteRune('A' + (r - 0x1F1E6))
		}
	}
	if b.Len() == 2 {
		return b.String()
	}
	return strings.ToUpper(flag)
}
