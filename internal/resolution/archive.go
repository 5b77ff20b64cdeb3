package resolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predictionleague/internal/crypto"
	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// SignedReport is the archived form of a report. Signature is an EIP-712
// attestation over the report body; it is empty when no signer is set.
type SignedReport struct {
	Report    json.RawMessage `json:"report"`
	Signer    string          `json:"signer,omitempty"`
	ChainID   int64           `json:"chain_id,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// ReportArchive stores signed reports in object storage under
// <prefix>/league-<id>/<market>/<run>.json.
type ReportArchive struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	signer *crypto.Signer
	prefix string
}

// NewReportArchive creates a ReportArchive. reader and signer may be nil.
func NewReportArchive(writer domain.BlobWriter, reader domain.BlobReader, signer *crypto.Signer, prefix string) *ReportArchive {
	return &ReportArchive{
		writer: writer,
		reader: reader,
		signer: signer,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Archive signs and uploads r, returning its object path.
func (a *ReportArchive) Archive(ctx context.Context, r *Report) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("archive: marshal report: %w", err)
	}
	env := SignedReport{Report: body}
	if a.signer != nil {
		sig, err := a.signer.SignAttestation(attestationFor(r.LeagueID, r.MarketID, r.WinningOutcome, body))
		if err != nil {
			return "", fmt.Errorf("archive: %w", err)
		}
		env.Signer = a.signer.Address().Hex()
		env.ChainID = a.signer.ChainID()
		env.Signature = sig
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: marshal envelope: %w", err)
	}

	path := a.ReportPath(r.LeagueID, r.MarketID, r.RunID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", path, err)
	}
	return path, nil
}

// ReportPath returns the object path for a run.
func (a *ReportArchive) ReportPath(leagueID uint64, marketID domain.MarketID, runID string) string {
	return fmt.Sprintf("%s%s/%s.json", a.leaguePrefix(leagueID), marketID.Hex(), runID)
}

// List returns the archived reports of a league.
func (a *ReportArchive) List(ctx context.Context, leagueID uint64) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("archive: no reader configured")
	}
	return a.reader.List(ctx, a.leaguePrefix(leagueID))
}

// Load downloads an archived report and verifies its signature when one is
// present.
func (a *ReportArchive) Load(ctx context.Context, path string) (*Report, *SignedReport, error) {
	if a.reader == nil {
		return nil, nil, fmt.Errorf("archive: no reader configured")
	}
	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: download %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	var env SignedReport
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("archive: decode envelope %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(env.Report, &r); err != nil {
		return nil, nil, fmt.Errorf("archive: decode report %s: %w", path, err)
	}
	r.ArchivePath = path
	if err := Verify(&r, &env); err != nil {
		return &r, &env, err
	}
	return &r, &env, nil
}

// Verify checks env's signature against the report it carries. Unsigned
// envelopes verify trivially.
func Verify(r *Report, env *SignedReport) error {
	if env.Signature == "" {
		return nil
	}
	if !common.IsHexAddress(env.Signer) {
		return fmt.Errorf("archive: invalid signer %q", env.Signer)
	}
	// The envelope is indented on disk; the signature covers the compact body.
	var body bytes.Buffer
	if err := json.Compact(&body, env.Report); err != nil {
		return fmt.Errorf("archive: compact report: %w", err)
	}
	a := attestationFor(r.LeagueID, r.MarketID, r.WinningOutcome, body.Bytes())
	return crypto.VerifyAttestation(a, env.Signature, common.HexToAddress(env.Signer), env.ChainID)
}

func (a *ReportArchive) leaguePrefix(leagueID uint64) string {
	p := fmt.Sprintf("league-%d/", leagueID)
	if a.prefix != "" {
		p = a.prefix + "/" + p
	}
	return p
}

func attestationFor(leagueID uint64, marketID domain.MarketID, outcome bool, body []byte) crypto.Attestation {
	return crypto.Attestation{
		LeagueID:   leagueID,
		MarketID:   marketID,
		Outcome:    outcome,
		ReportHash: crypto.HashReport(body),
	}
}
