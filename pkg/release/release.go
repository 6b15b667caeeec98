// Package release attaches collected artifacts to a draft GitHub release.
package release

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-github/v57/github"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"

	"github.com/kivy/angle-builder/pkg/buildsys"
)

// Publisher uploads files to the releases of one repository
type Publisher struct {
	client *github.Client
	Owner  string
	Repo   string
}

// ParseRepository splits "owner/name"
func ParseRepository(repository string) (string, string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repository), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", eris.Errorf("invalid repository %q, expected owner/name", repository)
	}
	return owner, name, nil
}

// NewPublisher returns a publisher for repository ("owner/name") authenticated with token
func NewPublisher(ctx context.Context, token, repository string) (*Publisher, error) {
	if token == "" {
		return nil, eris.New("a GitHub token is required to publish releases")
	}

	owner, repo, err := ParseRepository(repository)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Publisher{
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		Owner:  owner,
		Repo:   repo,
	}, nil
}

// Files returns the regular files directly inside folder, sorted by name
func Files(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to read %s", folder)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(folder, entry.Name()))
	}

	return files, nil
}

// Prerelease reports whether tag is a semantic version with a pre-release part (v1.2.0-rc.1)
func Prerelease(tag string) bool {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}

func (p *Publisher) findRelease(ctx context.Context, tag string) (*github.RepositoryRelease, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		// GetReleaseByTag doesn't return drafts
		releases, resp, err := p.client.Repositories.ListReleases(ctx, p.Owner, p.Repo, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to list releases of %s/%s", p.Owner, p.Repo)
		}

		for _, rel := range releases {
			if rel.GetTagName() == tag {
				return rel, nil
			}
		}

		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// DraftRelease returns the draft release for tag, creating it if necessary.
// Published releases are never modified.
func (p *Publisher) DraftRelease(ctx context.Context, tag string) (*github.RepositoryRelease, error) {
	rel, err := p.findRelease(ctx, tag)
	if err != nil {
		return nil, err
	}

	if rel != nil {
		if !rel.GetDraft() {
			return nil, eris.Errorf("release %s of %s/%s is already published", tag, p.Owner, p.Repo)
		}
		return rel, nil
	}

	buildsys.Log(ctx).Info().Str("tag", tag).Msg("Creating draft release")
	rel, _, err = p.client.Repositories.CreateRelease(ctx, p.Owner, p.Repo, &github.RepositoryRelease{
		TagName:    github.String(tag),
		Name:       github.String(tag),
		Draft:      github.Bool(true),
		Prerelease: github.Bool(Prerelease(tag)),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create release %s", tag)
	}

	return rel, nil
}

func (p *Publisher) assets(ctx context.Context, id int64) (map[string]int64, error) {
	result := make(map[string]int64)
	opts := &github.ListOptions{PerPage: 100}
	for {
		assets, resp, err := p.client.Repositories.ListReleaseAssets(ctx, p.Owner, p.Repo, id, opts)
		if err != nil {
			return nil, eris.Wrap(err, "Failed to list release assets")
		}

		for _, asset := range assets {
			result[asset.GetName()] = asset.GetID()
		}

		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

func (p *Publisher) upload(ctx context.Context, id int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", path)
	}
	defer f.Close()

	_, _, err = p.client.Repositories.UploadReleaseAsset(ctx, p.Owner, p.Repo, id, &github.UploadOptions{
		Name: filepath.Base(path),
	}, f)
	return eris.Wrapf(err, "Failed to upload %s", path)
}

// Publish uploads every file in folder as-is to the draft release for tag, replacing assets
// with the same name. It returns the uploaded file names.
func (p *Publisher) Publish(ctx context.Context, tag, folder string) ([]string, error) {
	files, err := Files(folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, eris.Errorf("no artifacts found in %s", folder)
	}

	rel, err := p.DraftRelease(ctx, tag)
	if err != nil {
		return nil, err
	}

	existing, err := p.assets(ctx, rel.GetID())
	if err != nil {
		return nil, err
	}

	log := buildsys.Log(ctx)
	var uploaded []string
	for _, path := range files {
		name := filepath.Base(path)
		if id, ok := existing[name]; ok {
			log.Info().Str("asset", name).Msg("Replacing existing asset")
			resp, err := p.client.Repositories.DeleteReleaseAsset(ctx, p.Owner, p.Repo, id)
			if err != nil && (resp == nil || resp.StatusCode != http.StatusNotFound) {
				return uploaded, eris.Wrapf(err, "Failed to delete asset %s", name)
			}
		}

		log.Info().Str("asset", name).Str("tag", tag).Msg("Uploading")
		if err = p.upload(ctx, rel.GetID(), path); err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, name)
	}

	return uploaded, nil
}
