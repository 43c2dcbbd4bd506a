package statsd

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// lineFormatter renders DogStatsD lines for one prefix and tag set.
type lineFormatter struct {
	prefix string
	tags   map[string]string
}

func newLineFormatter(prefix string, tags map[string]string) lineFormatter {
	return lineFormatter{
		prefix: strings.Trim(strings.TrimSpace(prefix), "."),
		tags:   mergeTags(nil, tags),
	}
}

func (f lineFormatter) count(name string, v int64, tags map[string]string) string {
	return f.line(name, strconv.FormatInt(v, 10), "c", tags)
}

func (f lineFormatter) gauge(name string, v float64, tags map[string]string) string {
	return f.line(name, strconv.FormatFloat(v, 'f', -1, 64), "g", tags)
}

func (f lineFormatter) timing(name string, d time.Duration, tags map[string]string) string {
	ms := float64(d) / float64(time.Millisecond)
	return f.line(name, strconv.FormatFloat(ms, 'f', -1, 64), "ms", tags)
}

// line returns "" when name normalizes to nothing.
func (f lineFormatter) line(name, value, kind string, tags map[string]string) string {
	metric := metricName(name)
	if metric == "" {
		return ""
	}
	if f.prefix != "" {
		metric = f.prefix + "." + metric
	}

	var b strings.Builder
	b.WriteString(metric)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(kind)
	writeTags(&b, mergeTags(f.tags, tags))
	return b.String()
}

// metricName keeps names inside the characters StatsD servers accept.
func metricName(name string) string {
	n := strings.TrimSpace(name)
	n = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', ':', '|', '@', '#', ',':
			return '_'
		}
		return r
	}, n)
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	return strings.Trim(n, ".")
}

// mergeTags copies base then overlays extra, dropping blank keys.
func mergeTags(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for _, src := range []map[string]string{base, extra} {
		for k, v := range src {
			if key := strings.TrimSpace(k); key != "" {
				out[key] = tagValue(v)
			}
		}
	}
	return out
}

func tagValue(v string) string {
	return strings.NewReplacer(",", "_", "|", "_").Replace(strings.TrimSpace(v))
}

func writeTags(b *strings.Builder, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(tags[k])
	}
}
