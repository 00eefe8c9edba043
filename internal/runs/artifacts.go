package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/workflow"
	"github.com/JaimeStill/sectional/pkg/storage"
)

// Artifact names. Every artifact except the source upload is JSON.
const (
	ArtifactSource     = "source"
	ArtifactFields     = "fields"
	ArtifactSections   = "sections"
	ArtifactStatistics = "statistics"
	ArtifactResult     = "result"
)

// Artifacts lists the names that Artifact accepts.
var Artifacts = []string{
	ArtifactSource,
	ArtifactFields,
	ArtifactSections,
	ArtifactStatistics,
	ArtifactResult,
}

const uploadLimit = 4

// Prefix returns the storage prefix under which a run's artifacts live.
func Prefix(id uuid.UUID) string {
	return fmt.Sprintf("runs/%s/", id)
}

// ArtifactKey returns the blob key of the named artifact.
func ArtifactKey(prefix, name string) (string, error) {
	if !slices.Contains(Artifacts, name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownArtifact, name)
	}
	if name == ArtifactSource {
		return prefix + name, nil
	}
	return prefix + name + ".json", nil
}

// ArtifactInfo reports where an artifact lives and whether it is stored.
type ArtifactInfo struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	Available bool   `json:"available"`
}

type artifact struct {
	name        string
	data        []byte
	contentType string
}

func buildArtifacts(source []byte, sourceType string, fs []fields.Field, res *workflow.Result) ([]artifact, error) {
	out := []artifact{{name: ArtifactSource, data: source, contentType: sourceType}}

	docs := []struct {
		name string
		v    any
	}{
		{ArtifactFields, fs},
		{ArtifactSections, res.Sections},
		{ArtifactStatistics, res.Statistics},
		{ArtifactResult, res},
	}
	for _, d := range docs {
		data, err := json.MarshalIndent(d.v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", d.name, err)
		}
		out = append(out, artifact{name: d.name, data: data, contentType: "application/json"})
	}
	return out, nil
}

// uploadArtifacts writes all artifacts under prefix concurrently. The first
// failure cancels the remaining uploads.
func uploadArtifacts(ctx context.Context, store storage.System, prefix string, artifacts []artifact) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadLimit)

	for _, a := range artifacts {
		key, err := ArtifactKey(prefix, a.name)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := store.Upload(gctx, key, bytes.NewReader(a.data), a.contentType); err != nil {
				return fmt.Errorf("upload %s: %w", a.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// listArtifacts checks every artifact of a run concurrently.
func listArtifacts(ctx context.Context, store storage.System, prefix string) ([]ArtifactInfo, error) {
	out := make([]ArtifactInfo, len(Artifacts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadLimit)

	for i, name := range Artifacts {
		key, err := ArtifactKey(prefix, name)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			ok, err := store.Exists(gctx, key)
			if err != nil {
				return fmt.Errorf("check %s: %w", name, err)
			}
			out[i] = ArtifactInfo{Name: name, Key: key, Available: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// downloadArtifact opens the named artifact of a run.
func downloadArtifact(ctx context.Context, store storage.System, prefix, name string) (io.ReadCloser, error) {
	key, err := ArtifactKey(prefix, name)
	if err != nil {
		return nil, err
	}
	return store.Download(ctx, key)
}
