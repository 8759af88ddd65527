package notification

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/notifier/internal/model"
)

var (
	ErrNullValue    = errors.New("field is null")
	ErrUnknownToken = errors.New("unknown reserved token")
)

var tokenPattern = regexp.MustCompile(`<%([^<>%]+)%>`)

const (
	nowLayout   = "2006-01-02 15:04"
	todayLayout = "2006-01-02"
	valueLayout = "2006-01-02 15:04:05"
)

// Miss is a token that was left in the output unreplaced.
type Miss struct {
	Token string
	Err   error
}

// Rendered is the result of a template substitution. Text is always usable,
// even when some tokens could not be replaced.
type Rendered struct {
	Text   string
	Misses []Miss
}

// SubjectData feeds the reserved subject tokens.
type SubjectData struct {
	ItemCount int
	Name      string
	Entity    string
	Now       time.Time
}

// RenderBody replaces <%Field%> tokens with values from rec. Tokens containing
// a colon are reserved and left alone.
func RenderBody(template string, rec model.Record) Rendered {
	return render(template, rec, nil)
}

// RenderSubject is RenderBody plus the reserved <%:NAME%> style tokens. rec
// may be nil, in which case field tokens are reported as misses.
func RenderSubject(template string, rec model.Record, data SubjectData) Rendered {
	return render(template, rec, &data)
}

func render(template string, rec model.Record, data *SubjectData) Rendered {
	var out Rendered
	out.Text = tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[2 : len(token)-2]

		if strings.Contains(name, ":") {
			if data == nil {
				return token
			}
			v, ok := reserved(name, data)
			if !ok {
				out.Misses = append(out.Misses, Miss{Token: token, Err: ErrUnknownToken})
				return token
			}
			return v
		}

		v, err := rec.Field(name)
		if err != nil {
			out.Misses = append(out.Misses, Miss{Token: token, Err: err})
			return token
		}
		if v == nil {
			out.Misses = append(out.Misses, Miss{Token: token, Err: ErrNullValue})
			return token
		}
		return stringify(v)
	})
	return out
}

func reserved(name string, d *SubjectData) (string, bool) {
	plural := d.ItemCount > 1
	switch strings.ToUpper(name) {
	case ":ISARE":
		if plural {
			return "are", true
		}
		return "is", true
	case ":HASHAVE":
		if plural {
			return "have", true
		}
		return "has", true
	case ":NOW":
		return d.Now.Format(nowLayout), true
	case ":TODAY":
		return d.Now.Format(todayLayout), true
	case ":ITEMCOUNT":
		return strconv.Itoa(d.ItemCount), true
	case ":NAME":
		return d.Name, true
	case ":ENTITY":
		return Pluralize(d.Entity, d.ItemCount), true
	}
	return "", false
}

// Pluralize appends "es" to words ending in s and "s" otherwise when count > 1.
func Pluralize(entity string, count int) string {
	if count <= 1 {
		return entity
	}
	if strings.HasSuffix(entity, "s") {
		return entity + "es"
	}
	return entity + "s"
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(valueLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(valueLayout)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
