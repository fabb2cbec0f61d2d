package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/revolis/allpremarkets/internal/domain/models"
)

// DefaultVenueLinks are appended to alerts unless overridden.
var DefaultVenueLinks = map[models.Venue]string{
	models.VenueMEXC:        "https://www.mexc.com/pre-market",
	models.VenueBybit:       "https://www.bybit.com/trade/usdt",
	models.VenueBinance:     "https://www.binance.com/en/pre-market",
	models.VenueHyperliquid: "https://app.hyperliquid.xyz/trade",
	models.VenueWhales:      "https://pro.whales.market",
	models.VenueBitget:      "https://www.bitget.com/pre-market",
}

func kindLabel(k models.Kind) string {
	switch k {
	case models.KindPerpMark:
		return "perp"
	case models.KindOTCOrder:
		return "order"
	default:
		return "spot"
	}
}

type leg struct {
	venue models.Venue
	label string
	price string
}

func legOf(q models.Quote) leg {
	return leg{
		venue: q.Venue,
		label: fmt.Sprintf("%s (%s)", q.Venue, kindLabel(q.Kind)),
		price: q.Price.String(),
	}
}

// trade returns the buy and sell legs. A non-negative direction means
// leg A is the richer side.
func trade(ev models.AlertEvent) (buy, sell leg) {
	a, b := legOf(ev.QuoteA), legOf(ev.QuoteB)
	if ev.Direction >= 0 {
		return b, a
	}
	return a, b
}

// FormatAlert renders an alert for chat delivery.
func FormatAlert(ev models.AlertEvent, prefix string, links map[models.Venue]string) string {
	buy, sell := trade(ev)

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(prefix + " " + ev.Symbol))
	fmt.Fprintf(&sb, "\nBuy %s @ %s | Sell %s @ %s", buy.label, buy.price, sell.label, sell.price)
	fmt.Fprintf(&sb, "\nGross %.2f%% | Net %.2f%% | %s", ev.RawSpreadPct, ev.NetSpreadPct, ev.Reason)
	fmt.Fprintf(&sb, "\nRule %s | #%d | %s", ev.RuleID, ev.Seq, ev.CreatedAt.UTC().Format(time.RFC3339))

	var extras []string
	if u := links[buy.venue]; u != "" {
		extras = append(extras, "Buy venue: "+u)
	}
	if u := links[sell.venue]; u != "" {
		extras = append(extras, "Sell venue: "+u)
	}
	if len(extras) > 0 {
		sb.WriteString("\n" + strings.Join(extras, " | "))
	}
	return sb.String()
}

// FormatStatus renders the /status reply.
func FormatStatus(venues []models.VenueState, muted []string, lastAlert time.Time) string {
	fresh := 0
	var stale []string
	for _, vs := range venues {
		if vs.Stale {
			stale = append(stale, fmt.Sprintf("%s/%s (%s)", vs.Quote.Venue, vs.Quote.Symbol, vs.Age))
			continue
		}
		fresh++
	}

	mutedText := "None"
	if len(muted) > 0 {
		sorted := append([]string(nil), muted...)
		sort.Strings(sorted)
		mutedText = strings.Join(sorted, ", ")
	}
	last := "Never"
	if !lastAlert.IsZero() {
		last = lastAlert.UTC().Format(time.RFC3339)
	}

	var sb strings.Builder
	sb.WriteString("Premarket bot status:")
	fmt.Fprintf(&sb, "\n- Venues: %d fresh, %d stale", fresh, len(stale))
	for _, s := range stale {
		sb.WriteString("\n  - stale " + s)
	}
	sb.WriteString("\n- Muted tokens: " + mutedText)
	sb.WriteString("\n- Last alert: " + last)
	return sb.String()
}

// FormatRecent renders the /last5 reply. events are newest first.
func FormatRecent(token string, events []models.AlertEvent) string {
	if len(events) == 0 {
		if token == "" {
			return "No alerts recorded yet."
		}
		return fmt.Sprintf("No alerts recorded for %s yet.", token)
	}

	var sb strings.Builder
	if token == "" {
		fmt.Fprintf(&sb, "Last %d alerts:", len(events))
	} else {
		fmt.Fprintf(&sb, "Last %d alerts for %s:", len(events), token)
	}
	for _, ev := range events {
		buy, sell := trade(ev)
		fmt.Fprintf(&sb, "\n%s | %s | Net %.2f%% (%s -> %s)",
			ev.CreatedAt.UTC().Format(time.RFC3339), ev.Symbol, ev.NetSpreadPct, buy.label, sell.label)
	}
	return sb.String()
}
