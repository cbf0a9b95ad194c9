package normalize

import (
	"strings"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain/listing"
)

// notInformed stands in for a missing phone in listing text only.
const notInformed = "No informado"

const separator = "--------------------------"

// Content renders the text both embeddings are computed from.
func Content(m listing.Metadata, description string) string {
	var b strings.Builder
	b.WriteString("🏡 " + m.Title + " 💰 Precio: " + m.Currency + " " + m.Price.String() + "\n")
	b.WriteString("📍 " + m.Address + " - " + m.Location + "\n")
	b.WriteString("📐 Tipo: " + m.Type + " | Sup: " + m.Surface + " m²\n")
	b.WriteString("🛏️ Ambientes: " + m.Rooms + " | 🚿 Baños: " + m.Bathrooms + "\n")
	b.WriteString("☎️ Sucursal: " + orNotInformed(m.BranchPhone) + "\n")
	b.WriteString("👤 Productor: " + orNotInformed(m.ProducerPhone) + "\n")
	b.WriteString("🔗 Link: " + m.Link + "\n")
	b.WriteString("\n")
	b.WriteString(description + "\n")
	b.WriteString(separator)
	return b.String()
}

func orNotInformed(s string) string {
	if s == "" {
		return notInformed
	}
	return s
}
