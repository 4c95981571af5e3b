package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AnnotationGRPCMaxMsgSize overrides the gRPC max message size in bytes.
const AnnotationGRPCMaxMsgSize = "seldon.io/grpc-max-message-size"

// Annotation keys contain dots and slashes, so nesting is disabled by using a
// delimiter that cannot appear in a Kubernetes annotation key.
const annotationDelim = "|"

// Annotations is the pod's downward-API annotation set.
type Annotations struct {
	k *koanf.Koanf
}

// LoadAnnotations reads a downward-API file of key="value" lines. A missing
// file yields an empty set.
func LoadAnnotations(path string) (Annotations, error) {
	k := koanf.New(annotationDelim)
	if path != "" {
		if err := k.Load(file.Provider(path), AnnotationsParser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Annotations{}, fmt.Errorf("annotations: load %s: %w", path, err)
		}
	}
	return Annotations{k: k}, nil
}

func (a Annotations) String(key string) string {
	if a.k == nil {
		return ""
	}
	return a.k.String(key)
}

// Int returns the integer value of key and whether it was set.
func (a Annotations) Int(key string) (int, bool, error) {
	s := strings.TrimSpace(a.String(key))
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("annotation %s=%q: %w", key, s, err)
	}
	return n, true, nil
}

type annotationsParser struct{}

// AnnotationsParser is a koanf.Parser for the downward-API annotations format.
func AnnotationsParser() koanf.Parser { return annotationsParser{} }

func (annotationsParser) Unmarshal(b []byte) (map[string]any, error) {
	out := map[string]any{}
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", n)
		}
		val := raw
		if strings.HasPrefix(raw, `"`) {
			v, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			val = v
		}
		out[strings.TrimSpace(key)] = val
	}
	return out, sc.Err()
}

func (annotationsParser) Marshal(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%s\n", k, strconv.Quote(fmt.Sprint(m[k])))
	}
	return buf.Bytes(), nil
}
