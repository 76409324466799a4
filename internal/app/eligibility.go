/**
 * @description
 * Provider eligibility and new-request fan-out. A provider is eligible for a
 * request when it is available, validated, and (when the request carries a
 * resolved city) located in the same city under the pluggable normalizer.
 *
 * City matching tolerates accents, casing, and the common Moroccan aliases a
 * profile form produces ("Casa" vs "Casablanca", "Fès" vs "Fez"). Unknown
 * cities compare by their folded form only.
 */

package app

import (
	"context"
	"log"
	"strings"

	"github.com/allobrico/dispatch-service/internal/domain"
)

// CityNormalizer reduces a raw city label to its canonical comparison key.
// Two labels refer to the same city iff their normalized forms are equal.
type CityNormalizer func(raw string) string

// cityAliases maps folded alias spellings to a canonical key.
var cityAliases = map[string]string{
	"casa":         "casablanca",
	"dar el beida": "casablanca",
	"el beida":     "casablanca",
	"marrakesh":    "marrakech",
	"fez":          "fes",
	"tangier":      "tanger",
	"tangiers":     "tanger",
	"mogador":      "essaouira",
}

// NormalizeCity is the default normalizer: lowercase, strip diacritics,
// collapse whitespace, then resolve known aliases.
func NormalizeCity(raw string) string {
	folded := foldDiacritics(strings.ToLower(strings.TrimSpace(raw)))
	folded = strings.Join(strings.Fields(folded), " ")
	if canonical, ok := cityAliases[folded]; ok {
		return canonical
	}
	return folded
}

// foldDiacritics maps the accented characters that show up in Moroccan city
// names to their ASCII base. Anything else passes through untouched.
func foldDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 'à', 'á', 'â', 'ä', 'ã':
			b.WriteRune('a')
		case 'è', 'é', 'ê', 'ë':
			b.WriteRune('e')
		case 'ì', 'í', 'î', 'ï':
			b.WriteRune('i')
		case 'ò', 'ó', 'ô', 'ö':
			b.WriteRune('o')
		case 'ù', 'ú', 'û', 'ü':
			b.WriteRune('u')
		case 'ç':
			b.WriteRune('c')
		case 'ñ':
			b.WriteRune('n')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// eligibleProviders filters the availability pool down to the recipients of a
// request broadcast. Availability and validation are enforced here even though
// the store pre-filters; the filter is the contract, the query an optimization.
func (s *Service) eligibleProviders(providers []domain.ProviderAvailability, requestCity *string) []domain.ProviderAvailability {
	var requestKey string
	if requestCity != nil {
		requestKey = s.normalizeCity(*requestCity)
	}

	eligible := make([]domain.ProviderAvailability, 0, len(providers))
	for _, p := range providers {
		if !p.Eligible() {
			continue
		}
		if requestKey != "" {
			if p.City == nil || s.normalizeCity(*p.City) != requestKey {
				continue
			}
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// fanOutNewRequest notifies every eligible provider about a freshly created
// request. One recipient failing never stops the rest; failures are logged
// with the request id for correlation.
func (s *Service) fanOutNewRequest(ctx context.Context, req *domain.Request) {
	ctx, cancel := context.WithTimeout(ctx, fanOutTimeout)
	defer cancel()

	providers, err := s.repo.ListAvailableProviders(ctx)
	if err != nil {
		log.Printf("level=error component=dispatch op=fan_out msg=\"provider listing failed; nobody notified\" request_id=%s err=%v", req.ID, err)
		return
	}

	recipients := s.eligibleProviders(providers, req.City)
	if len(recipients) == 0 {
		log.Printf("level=info component=dispatch op=fan_out msg=\"no eligible providers\" request_id=%s city=%v", req.ID, req.City)
		return
	}

	title := "Nouvelle demande de dépannage"
	body := requestSummary(req)
	data := map[string]string{"request_id": req.ID.String()}

	delivered := 0
	for _, p := range recipients {
		if s.notifier == nil {
			break
		}
		if err := s.notifier.PushToUser(ctx, p.ProviderID, title, body, data); err != nil {
			log.Printf("level=warn component=dispatch op=fan_out msg=\"provider notification failed\" request_id=%s provider_id=%s err=%v", req.ID, p.ProviderID, err)
			continue
		}
		delivered++
	}

	log.Printf("level=info component=dispatch op=fan_out msg=\"broadcast finished\" request_id=%s eligible=%d delivered=%d", req.ID, len(recipients), delivered)
}

// requestSummary builds the short notification line: client budget when
// present, plus the address truncated to a displayable length.
func requestSummary(req *domain.Request) string {
	address := truncateRunes(req.Address, addressSummaryMaxLen)
	if req.ProposedAmount != nil {
		return "Budget " + formatAmount(*req.ProposedAmount) + " - " + address
	}
	return address
}
