package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/slipstream/mediabridge/internal/catalog"
	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

// ResolverOptions tunes candidate generation.
type ResolverOptions struct {
	AlternativeTitles bool
	Candidates        CandidateOptions
}

// Resolver turns a TMDB id into a catalog download descriptor.
type Resolver struct {
	tmdb    TMDBClient
	catalog CatalogClient
	matcher *catalog.Matcher
	opts    ResolverOptions
	logger  zerolog.Logger
}

// NewResolver creates a resolver. A nil matcher uses the default parser and options.
func NewResolver(tmdbClient TMDBClient, catalogClient CatalogClient, matcher *catalog.Matcher, opts ResolverOptions, logger zerolog.Logger) *Resolver {
	if matcher == nil {
		matcher = catalog.NewMatcher(nil, catalog.DefaultMatcherOptions())
	}
	return &Resolver{
		tmdb:    tmdbClient,
		catalog: catalogClient,
		matcher: matcher,
		opts:    opts,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve runs the full pipeline for one request. A subject that resolves
// but whose download descriptor cannot be fetched yields a partial result
// rather than an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id, _ := strconv.Atoi(req.MediaID)

	details, err := r.tmdb.GetDetails(ctx, req.tmdbType(), id)
	if err != nil {
		return nil, r.providerError(ctx, req, err)
	}

	candidates := BuildCandidates(details.Title, details.OriginalTitle, r.alternativeTitles(ctx, req, id), r.opts.Candidates)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s %s: title %q is not searchable: %w", req.Kind, req.MediaID, details.Title, ErrNotFound)
	}

	subject, payload, err := r.findSubject(ctx, candidates, details.Year)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w", req.Kind, req.MediaID, err)
	}

	result := &Result{
		Type:      req.Kind,
		Title:     details.Title,
		Year:      details.Year,
		SubjectID: subject.SubjectID,
		Season:    req.Season,
		Episode:   req.Episode,
	}

	subject.DetailPath = r.matcher.Parser().FindDetailPath(payload, subject.SubjectID, catalog.Slug(subject.UsedTitle))
	if subject.DetailPath != "" {
		subject.DetailsURL = r.catalog.DetailsURL(subject.DetailPath, subject.SubjectID)
		result.DetailPath = &subject.DetailPath
	} else {
		subject.DetailsURL = r.catalog.FallbackDetailsURL(subject.SubjectID)
		result.markMissing(MissingDetailPath)
	}
	result.DetailsURL = subject.DetailsURL

	descriptor, err := r.catalog.Download(ctx, subject.SubjectID, req.Season, req.Episode, subject.DetailsURL)
	switch {
	case err == nil:
		result.DownloadData = descriptor
		result.HasResource = hasResource(descriptor)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		r.logger.Warn().
			Err(err).
			Str("subjectId", subject.SubjectID).
			Int("season", req.Season).
			Int("episode", req.Episode).
			Msg("Download descriptor unavailable, returning partial result")
		result.markMissing(MissingDownloadData)
	}

	r.logger.Info().
		Str("key", req.CacheKey()).
		Str("title", details.Title).
		Str("usedTitle", subject.UsedTitle).
		Str("subjectId", subject.SubjectID).
		Bool("hasResource", result.HasResource).
		Bool("partial", result.Partial).
		Msg("Resolved media")

	return result, nil
}

// findSubject searches each candidate in order and stops at the first match.
// It returns the search payload of the winning candidate so the detail path
// can be read from the same markup.
func (r *Resolver) findSubject(ctx context.Context, candidates []Candidate, year string) (*catalog.Subject, string, error) {
	wantYear, _ := strconv.Atoi(year)

	var lastErr error
	for _, candidate := range candidates {
		keyword := candidate.Text
		if year != "" {
			keyword = fmt.Sprintf("%s %s", candidate.Text, year)
		}

		payload, err := r.catalog.Search(ctx, keyword)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			r.logger.Warn().Err(err).Str("keyword", keyword).Msg("Catalog search failed")
			lastErr = err
			continue
		}

		match, ok := r.matcher.Match(payload, candidate.Text, wantYear)
		if !ok {
			r.logger.Debug().
				Str("candidate", candidate.Text).
				Str("source", string(candidate.Source)).
				Msg("No catalog subject for candidate")
			continue
		}

		r.logger.Debug().
			Str("candidate", candidate.Text).
			Str("source", string(candidate.Source)).
			Str("subjectId", match.Row.SubjectID).
			Str("tier", match.Tier.String()).
			Msg("Matched catalog subject")

		return &catalog.Subject{SubjectID: match.Row.SubjectID, UsedTitle: candidate.Text}, payload, nil
	}

	// A failed search means the catalog never answered for that candidate,
	// so the absence of a match is not conclusive.
	if lastErr != nil {
		return nil, "", newUpstreamError("catalog search", lastErr)
	}
	return nil, "", ErrNotFound
}

func (r *Resolver) alternativeTitles(ctx context.Context, req Request, id int) []tmdb.AlternativeTitle {
	if !r.opts.AlternativeTitles {
		return nil
	}
	titles, err := r.tmdb.GetAlternativeTitles(ctx, req.tmdbType(), id)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", req.CacheKey()).Msg("Alternative titles unavailable")
		return nil
	}
	return titles
}

func (r *Resolver) providerError(ctx context.Context, req Request, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, tmdb.ErrNotFound):
		return fmt.Errorf("%s %s is unknown to tmdb: %w", req.Kind, req.MediaID, ErrNotFound)
	case errors.Is(err, tmdb.ErrAPIKeyMissing):
		return err
	default:
		return newUpstreamError("tmdb details", err)
	}
}
