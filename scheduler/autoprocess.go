package scheduler

import (
	"context"
	"log"

	"github.com/camden-git/mediaidentity/services"
)

// AutoProcessJobID names the recurring recognition job.
const AutoProcessJobID = "auto-process"

// AutoProcessor is the part of the recognition service the job needs.
type AutoProcessor interface {
	AutoProcess(ctx context.Context, limit int, min services.Confidence) (map[string][]services.Match, error)
}

// AutoProcessTask recognizes up to limit unprocessed photos per run.
func AutoProcessTask(recognizer AutoProcessor, limit int, min services.Confidence) Task {
	return func(ctx context.Context) {
		results, err := recognizer.AutoProcess(ctx, limit, min)
		if err != nil {
			log.Printf("scheduler: auto-process failed: %v", err)
			return
		}
		if len(results) == 0 {
			log.Println("scheduler: no unprocessed photos found")
			return
		}
		log.Printf("scheduler: auto-processed %d photo(s), %d match(es)", len(results), services.CountMatches(results))
	}
}
