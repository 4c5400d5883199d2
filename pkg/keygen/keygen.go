package keygen

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/models"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/skip2/go-qrcode"
)

// Generator creates key pairs and keeps the most recent batch until cleared.
type Generator struct {
	outputDir string
	now       func() time.Time

	mu      sync.RWMutex
	wallets []models.KeyPair
}

func NewGenerator(outputDir string) *Generator {
	return &Generator{outputDir: outputDir, now: time.Now}
}

// Generate creates n key pairs numbered 1..n and replaces the retained batch with them.
// A negative n is rejected with errs.ErrInvalidAmount.
func (g *Generator) Generate(n int, progress func(string)) ([]models.KeyPair, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: cannot generate %d wallets", errs.ErrInvalidAmount, n)
	}
	if progress == nil {
		progress = func(string) {}
	}
	wallets := make([]models.KeyPair, 0, n)
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		kp := models.KeyPair{
			No:         i + 1,
			Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
			PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
		}
		wallets = append(wallets, kp)
		progress(fmt.Sprintf("Generated wallet %d/%d: %s", i+1, n, kp.Address))
	}

	g.mu.Lock()
	g.wallets = wallets
	g.mu.Unlock()

	logger.InfoCF("keygen", "Wallets generated", map[string]any{"count": n})
	return g.Wallets(), nil
}

// Wallets returns a copy of the retained batch.
func (g *Generator) Wallets() []models.KeyPair {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.KeyPair, len(g.wallets))
	copy(out, g.wallets)
	return out
}

func (g *Generator) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wallets = nil
}

// DefaultFilename builds wallets_<Y>_<M>_<D>_<h>_<m>_<s>.csv without zero padding.
func DefaultFilename(t time.Time) string {
	return fmt.Sprintf("wallets_%d_%d_%d_%d_%d_%d.csv", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// SaveCSV writes the retained batch as headerless [no, address, private_key] rows.
// Relative filenames are placed under the output directory. The file appears only once
// fully written.
func (g *Generator) SaveCSV(filename string) (string, error) {
	wallets := g.Wallets()
	if len(wallets) == 0 {
		return "", fmt.Errorf("%w: no wallets generated yet", errs.ErrIO)
	}
	if filename == "" {
		filename = DefaultFilename(g.now())
	}
	path := filename
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.outputDir, filename)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errs.Wrap(errs.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".wallets-*.tmp")
	if err != nil {
		return "", errs.Wrap(errs.ErrIO, err)
	}
	tmpPath := tmp.Name()
	cleanup := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", errs.Wrap(errs.ErrIO, fmt.Errorf("error saving wallets to CSV: %w", err))
	}

	w := csv.NewWriter(tmp)
	for _, kp := range wallets {
		if err := w.Write([]string{strconv.Itoa(kp.No), kp.Address, kp.PrivateKey}); err != nil {
			return cleanup(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return cleanup(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return cleanup(err)
	}

	logger.InfoCF("keygen", "Wallets saved", map[string]any{"path": path, "count": len(wallets)})
	return path, nil
}

// QRCode renders content as a terminal QR code using half-block characters.
func QRCode(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	bits := qr.Bitmap()

	var b strings.Builder
	for y := 0; y < len(bits); y += 2 {
		for x := range bits[y] {
			top := bits[y][x]
			bottom := y+1 < len(bits) && bits[y+1][x]
			switch {
			case top && bottom:
				b.WriteRune(' ')
			case top:
				b.WriteRune('▄')
			case bottom:
				b.WriteRune('▀')
			default:
				b.WriteRune('█')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
