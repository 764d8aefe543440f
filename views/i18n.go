package views

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
}

var matcher = language.NewMatcher(supported)

type labels struct {
	lang           string
	months         [12]string
	unknownDate    string
	loadMore       string
	loadMoreFailed string
	retry          string
	exitPreview    string
	prevPost       string
	nextPost       string
	loading        string
	editedAt       string // "* editado em %s, às %s"
	minutes        string
	notFound       string
	backHome       string
	serverError    string
	banner         string
	zone           string // IANA zone dates are shown in by default
	zoneOffset     int    // seconds east of UTC when zone is not installed
}

var catalog = map[string]labels{
	"pt": {
		lang:           "pt-BR",
		months:         [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
		unknownDate:    "data desconhecida",
		loadMore:       "Carregar mais posts",
		loadMoreFailed: "Não foi possível carregar mais posts.",
		retry:          "Tentar novamente",
		exitPreview:    "Sair do modo Preview",
		prevPost:       "Post anterior",
		nextPost:       "Próximo post",
		loading:        "Carregando...",
		editedAt:       "* editado em %s, às %s",
		minutes:        "%d min",
		notFound:       "Página não encontrada",
		backHome:       "Voltar para o início",
		serverError:    "Algo deu errado. Tente novamente em instantes.",
		banner:         "banner",
		zone:           "America/Sao_Paulo",
		zoneOffset:     -3 * 60 * 60,
	},
	"en": {
		lang:           "en",
		months:         [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		unknownDate:    "date unknown",
		loadMore:       "Load more posts",
		loadMoreFailed: "Could not load more posts.",
		retry:          "Try again",
		exitPreview:    "Exit preview mode",
		prevPost:       "Previous post",
		nextPost:       "Next post",
		loading:        "Loading...",
		editedAt:       "* edited on %s, at %s",
		minutes:        "%d min",
		notFound:       "Page not found",
		backHome:       "Back to home",
		serverError:    "Something went wrong. Please try again shortly.",
		banner:         "banner",
		zone:           "UTC",
	},
}

// labelsFor matches a locale such as "pt-BR", "pt" or "en-US" against the
// supported languages. Unknown locales get Portuguese.
func labelsFor(locale string) labels {
	tag, _ := language.MatchStrings(matcher, locale)
	base, _ := tag.Base()
	if l, ok := catalog[base.String()]; ok {
		return l
	}
	return catalog["pt"]
}

var zones sync.Map // name -> *time.Location

func loadZone(name string) (*time.Location, bool) {
	if loc, ok := zones.Load(name); ok {
		return loc.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	zones.Store(name, loc)
	return loc, true
}

// Location is the zone dates are shown in: TimeZone when it names a known
// zone, otherwise the usual zone of the locale.
func (s Site) Location() *time.Location {
	if s.TimeZone != "" {
		if loc, ok := loadZone(s.TimeZone); ok {
			return loc
		}
	}
	l := labelsFor(s.Locale)
	if loc, ok := loadZone(l.zone); ok {
		return loc
	}
	return time.FixedZone(l.zone, l.zoneOffset)
}

// local converts t to the site zone.
func (s Site) local(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	lt := t.In(s.Location())
	return &lt
}

// FormatDate renders t as "15 mar 2021" in the site locale.
func FormatDate(t *time.Time, locale string) string {
	l := labelsFor(locale)
	if t == nil {
		return l.unknownDate
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), l.months[t.Month()-1], t.Year())
}

// FormatTime renders the wall clock of t as "15:04".
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}

// EditedLine renders the "edited on" note for a republished post in the
// site zone.
func EditedLine(last *time.Time, site Site) string {
	l := labelsFor(site.Locale)
	last = site.local(last)
	return fmt.Sprintf(l.editedAt, FormatDate(last, site.Locale), FormatTime(last))
}
