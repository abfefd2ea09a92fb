package evolution

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pthm-cable/creatures/morph"
)

// ErrMalformed reports a session, generation or creature file that does not
// follow its format.
var ErrMalformed = errors.New("malformed session data")

const (
	sessionFile    = "session.dat"
	sessionHeader  = "--- Session data file ---"
	generationsDir = "generations"
	creaturesDir   = "creatures"
)

// RosterEntry is one line of a generation file.
type RosterEntry struct {
	ID      morph.CreatureID
	Fitness float32
	Flag    Flag
}

// Store reads and writes one session directory.
type Store struct {
	dir string
}

// OpenStore opens (creating if needed) the directory of session name under
// root.
func OpenStore(root, name string) (*Store, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid session name %q", name)
	}
	s := &Store{dir: filepath.Join(root, name)}
	for _, sub := range []string{generationsDir, creaturesDir} {
		if err := os.MkdirAll(filepath.Join(s.dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating session directory: %w", err)
		}
	}
	return s, nil
}

// Dir returns the session directory.
func (s *Store) Dir() string { return s.dir }

// Name returns the session name.
func (s *Store) Name() string { return filepath.Base(s.dir) }

// CreaturePath returns where creature id is recorded.
func (s *Store) CreaturePath(id morph.CreatureID) string {
	return filepath.Join(s.dir, creaturesDir, fmt.Sprintf("id-%d.yaml", id))
}

// GenerationPath returns where generation gen is recorded.
func (s *Store) GenerationPath(gen int) string {
	return filepath.Join(s.dir, generationsDir, fmt.Sprintf("gen-%d.dat", gen))
}

// SaveCreature records g unless a record for its ID already exists, since a
// creature never changes once created. Returns true if a file was written.
func (s *Store) SaveCreature(g *morph.Graph) (bool, error) {
	data, err := morph.Marshal(g)
	if err != nil {
		return false, fmt.Errorf("encoding creature %d: %w", g.ID, err)
	}
	f, err := os.OpenFile(s.CreaturePath(g.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("saving creature %d: %w", g.ID, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, fmt.Errorf("saving creature %d: %w", g.ID, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("saving creature %d: %w", g.ID, err)
	}
	return true, nil
}

// LoadCreature reads the record of creature id.
func (s *Store) LoadCreature(id morph.CreatureID) (*morph.Graph, error) {
	path := s.CreaturePath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading creature %d: %w", id, err)
	}
	g, err := morph.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	if g.ID != id {
		return nil, fmt.Errorf("%w: %s: holds creature %d", ErrMalformed, path, g.ID)
	}
	return g, nil
}

// WriteGeneration writes the roster of generation gen in member order.
func (s *Store) WriteGeneration(gen int, members []Member) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- Generation %d ---\n\n", gen)
	for _, m := range members {
		fmt.Fprintf(&buf, "id: [%d]  fitness: [%s]  flags: [%s]\n",
			m.ID(), strconv.FormatFloat(float64(m.Fitness), 'g', -1, 32), m.Flag)
	}
	if err := os.WriteFile(s.GenerationPath(gen), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing generation %d: %w", gen, err)
	}
	return nil
}

// ReadGeneration reads the roster of generation gen.
func (s *Store) ReadGeneration(gen int) ([]RosterEntry, error) {
	path := s.GenerationPath(gen)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading generation %d: %w", gen, err)
	}
	defer f.Close()
	return parseGeneration(f, path, gen)
}

func parseGeneration(r io.Reader, path string, gen int) ([]RosterEntry, error) {
	lines := newLineReader(r, path)

	header, ok := lines.next()
	if !ok || header != fmt.Sprintf("--- Generation %d ---", gen) {
		return nil, lines.malformed("want header for generation %d", gen)
	}
	if blank, ok := lines.next(); !ok || blank != "" {
		return nil, lines.malformed("want blank line after header")
	}

	var roster []RosterEntry
	for {
		line, ok := lines.next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 6 || f[0] != "id:" || f[2] != "fitness:" || f[4] != "flags:" {
			return nil, lines.malformed("want \"id: [N]  fitness: [F]  flags: [FLAG]\"")
		}
		idText, ok1 := unbracket(f[1])
		scoreText, ok2 := unbracket(f[3])
		flagText, ok3 := unbracket(f[5])
		if !ok1 || !ok2 || !ok3 {
			return nil, lines.malformed("values must be bracketed")
		}
		id, err := strconv.ParseUint(idText, 10, 64)
		if err != nil {
			return nil, lines.malformed("id: %v", err)
		}
		score, err := strconv.ParseFloat(scoreText, 32)
		if err != nil {
			return nil, lines.malformed("fitness: %v", err)
		}
		flag, err := ParseFlag(flagText)
		if err != nil {
			return nil, lines.malformed("%v", err)
		}
		roster = append(roster, RosterEntry{ID: morph.CreatureID(id), Fitness: float32(score), Flag: flag})
	}
	if err := lines.err(); err != nil {
		return nil, err
	}
	return roster, nil
}

// LoadPopulation rebuilds generation gen from its roster and creature
// records.
func (s *Store) LoadPopulation(gen int) ([]Member, error) {
	roster, err := s.ReadGeneration(gen)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(roster))
	for _, e := range roster {
		g, err := s.LoadCreature(e.ID)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Graph: g, Fitness: e.Fitness, Flag: e.Flag})
	}
	return members, nil
}

// WriteSession writes the session counters.
func (s *Store) WriteSession(sess *Session) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n\n", sessionHeader)
	fmt.Fprintf(&buf, "name = [%s]\n", sess.Name)
	fmt.Fprintf(&buf, "current_generation = [%d]\n", sess.Generation)
	fmt.Fprintf(&buf, "current_id = [%d]\n", sess.NextID)
	fmt.Fprintf(&buf, "best_fitness = [%s]\n", strconv.FormatFloat(float64(sess.BestFitness), 'g', -1, 32))
	fmt.Fprintf(&buf, "best_creature = [%d]\n", sess.BestCreature)
	if err := os.WriteFile(filepath.Join(s.dir, sessionFile), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// ReadSession reads the session counters. The boolean is false if the
// session has never been written.
func (s *Store) ReadSession() (*Session, bool, error) {
	path := filepath.Join(s.dir, sessionFile)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading session: %w", err)
	}
	defer f.Close()
	sess, err := parseSession(f, path)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func parseSession(r io.Reader, path string) (*Session, error) {
	lines := newLineReader(r, path)
	if header, ok := lines.next(); !ok || header != sessionHeader {
		return nil, lines.malformed("want %q", sessionHeader)
	}

	sess := &Session{}
	seen := make(map[string]bool)
	for {
		line, ok := lines.next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, lines.malformed("want \"key = value\"")
		}
		key = strings.TrimSpace(key)
		value, ok = unbracket(strings.TrimSpace(value))
		if !ok {
			return nil, lines.malformed("%s: value must be bracketed", key)
		}
		if seen[key] {
			return nil, lines.malformed("duplicate key %q", key)
		}
		seen[key] = true

		var err error
		switch key {
		case "name":
			sess.Name = value
		case "current_generation":
			sess.Generation, err = strconv.Atoi(value)
		case "current_id":
			sess.NextID, err = parseNextID(value)
		case "best_fitness":
			var score float64
			score, err = strconv.ParseFloat(value, 32)
			sess.BestFitness = float32(score)
		case "best_creature":
			var id uint64
			id, err = strconv.ParseUint(value, 10, 64)
			sess.BestCreature = morph.CreatureID(id)
		default:
			return nil, lines.malformed("unknown key %q", key)
		}
		if err != nil {
			return nil, lines.malformed("%s: %v", key, err)
		}
	}
	if err := lines.err(); err != nil {
		return nil, err
	}
	for _, key := range []string{"name", "current_generation", "current_id", "best_fitness", "best_creature"} {
		if !seen[key] {
			return nil, fmt.Errorf("%w: %s: missing %q", ErrMalformed, path, key)
		}
	}
	if sess.Generation < -1 {
		return nil, fmt.Errorf("%w: %s: negative generation %d", ErrMalformed, path, sess.Generation)
	}
	return sess, nil
}

// unbracket strips the one pair of square brackets every stored value is
// wrapped in.
func unbracket(s string) (string, bool) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// parseNextID reads current_id. A session that has never run stores -1.
func parseNextID(s string) (morph.CreatureID, error) {
	if s == "-1" {
		return 0, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return morph.CreatureID(id), err
}

// lineReader numbers lines for error messages.
type lineReader struct {
	sc   *bufio.Scanner
	path string
	n    int
}

func newLineReader(r io.Reader, path string) *lineReader {
	return &lineReader{sc: bufio.NewScanner(r), path: path}
}

func (l *lineReader) next() (string, bool) {
	if !l.sc.Scan() {
		return "", false
	}
	l.n++
	return strings.TrimRight(l.sc.Text(), "\r"), true
}

func (l *lineReader) err() error {
	if err := l.sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", l.path, err)
	}
	return nil
}

func (l *lineReader) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s:%d: %s", ErrMalformed, l.path, l.n, fmt.Sprintf(format, args...))
}
