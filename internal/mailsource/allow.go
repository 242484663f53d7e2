package mailsource

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// DefaultSenders are the airline, agency, and booking-site domains whose
// mail is worth extracting.
var DefaultSenders = []string{
	"latam.com", "aerolineas.com.ar", "americanairlines.com", "aa.com",
	"united.com", "delta.com", "copa.com", "avianca.com", "iberia.com",
	"aireuropa.com", "airfrance.com", "klm.com", "lufthansa.com",
	"britishairways.com", "emirates.com", "qatarairways.com",
	"jetsmart.com", "flybondi.com", "gol.com.br", "azul.com.br",
	"aeromexico.com", "despegar.com", "booking.com", "expedia.com",
	"airbnb.com", "almundo.com", "hertz.com", "avis.com",
	"localiza.com", "opentable.com", "civitatis.com", "getyourguide.com",
}

// AllowList decides which senders are trusted. Entries are domains
// ("copa.com", matching subdomains too), "@domain" forms, or full addresses.
type AllowList struct {
	domains   []string
	addresses map[string]bool
}

// NewAllowList builds an AllowList from entries; blanks are ignored.
func NewAllowList(entries []string) AllowList {
	a := AllowList{addresses: map[string]bool{}}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		switch {
		case e == "":
		case strings.HasPrefix(e, "@"):
			a.domains = append(a.domains, e[1:])
		case strings.Contains(e, "@"):
			a.addresses[e] = true
		default:
			a.domains = append(a.domains, e)
		}
	}
	return a
}

// Allowed reports whether a From header belongs to a trusted sender.
func (a AllowList) Allowed(from string) bool {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return false
	}
	email := strings.ToLower(addr.Address)
	if a.addresses[email] {
		return true
	}
	_, host, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// maxQueryDomains bounds the from: clauses in a search query.
const maxQueryDomains = 20

// Query builds the mailbox search for messages from the first allowed
// domains received after since.
func (a AllowList) Query(since time.Time) string {
	var from []string
	for _, d := range a.domains {
		if len(from) == maxQueryDomains {
			break
		}
		from = append(from, "from:@"+d)
	}
	for e := range a.addresses {
		if len(from) == maxQueryDomains {
			break
		}
		from = append(from, "from:"+e)
	}
	after := "after:" + since.Format("2006/01/02")
	if len(from) == 0 {
		return after
	}
	return fmt.Sprintf("(%s) %s", strings.Join(from, " OR "), after)
}
