package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	decisionx "github.com/carelake/clinical-assistant/agent/agents/decision"
	supervisorx "github.com/carelake/clinical-assistant/agent/agents/supervisor"
	workersx "github.com/carelake/clinical-assistant/agent/agents/workers"
	contractx "github.com/carelake/clinical-assistant/agent/contract"
	llmx "github.com/carelake/clinical-assistant/agent/llm"
	promptx "github.com/carelake/clinical-assistant/agent/prompt"
	indexx "github.com/carelake/clinical-assistant/index"
	ingestx "github.com/carelake/clinical-assistant/ingest"
	configx "github.com/carelake/clinical-assistant/pkg/config"
	logx "github.com/carelake/clinical-assistant/pkg/logger"
	servingx "github.com/carelake/clinical-assistant/pkg/modelserving"
	serverx "github.com/carelake/clinical-assistant/server"
)

type AppConfig struct {
	// MaxIterations bounds routing decisions per conversation run.
	MaxIterations int `split_words:"true" default:"3"`
	// IngestDir, when set, is a directory of raw HL7 files loaded into the
	// record store before the server starts.
	IngestDir string `split_words:"true"`
	// ReferenceDir, when set, is a directory of plain-text reference documents
	// loaded into the retrieval index before the server starts.
	ReferenceDir string `split_words:"true"`
}

func main() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	dbCfg := configx.MustNew[ingestx.DBConfig]("DB")
	indexCfg := configx.MustNew[indexx.Config]("INDEX")
	httpCfg := configx.MustNew[serverx.Config]("HTTP")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := ingestx.Connect(ctx, *dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect record store")
	}
	defer db.Close()

	store := ingestx.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate record store")
	}
	if appCfg.IngestDir != "" {
		n, err := ingestx.NewPipeline(store).IngestDir(ctx, os.DirFS(appCfg.IngestDir), ".")
		if err != nil {
			log.Fatal().Err(err).Str("dir", appCfg.IngestDir).Msg("ingest hl7 batch")
		}
		log.Info().Int("messages", n).Msg("startup ingest complete")
	}

	embedClient := servingx.NewClient(llmCfg.ServingFor(contractx.AgentTypeSupervisor))
	if embedClient == nil {
		log.Fatal().Msg("serving endpoint credentials missing")
	}
	idx, err := indexx.New(*indexCfg, indexx.OpenAIEmbedding(embedClient, llmCfg.EmbeddingModel))
	if err != nil {
		log.Fatal().Err(err).Msg("open reference index")
	}
	if appCfg.ReferenceDir != "" {
		if err := loadReferenceDocs(ctx, idx, appCfg.ReferenceDir); err != nil {
			log.Fatal().Err(err).Str("dir", appCfg.ReferenceDir).Msg("load reference documents")
		}
	}

	prompts := promptx.LoadPromptSet()
	genieCfg := llmCfg.ServingFor(contractx.AgentTypeGenie)
	genieModel, err := genieCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create genie model")
	}
	genie, err := workersx.NewGenie(ctx, genieModel, db, prompts.Genie)
	if err != nil {
		log.Fatal().Err(err).Msg("create genie worker")
	}
	retriever, err := workersx.NewRetriever(idx)
	if err != nil {
		log.Fatal().Err(err).Msg("create retriever worker")
	}
	registry, err := workersx.NewRegistry(genie, retriever)
	if err != nil {
		log.Fatal().Err(err).Msg("build worker registry")
	}

	classifier, synthesizer, err := decisionx.NewServices(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build decision services")
	}

	sup, err := supervisorx.New(classifier, synthesizer, registry, supervisorx.Config{
		MaxIterations: appCfg.MaxIterations,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build supervisor")
	}

	if err := serverx.Serve(ctx, *httpCfg, serverx.NewHandler(sup)); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
	log.Info().Msg("shutdown complete")
}

// loadReferenceDocs indexes every regular file under dir; the file name
// without extension becomes the document id and source label.
func loadReferenceDocs(ctx context.Context, idx *indexx.Index, dir string) error {
	fsys := os.DirFS(dir)
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return idx.Add(ctx, indexx.Document{
			ID:       name,
			Content:  string(raw),
			Metadata: map[string]string{"source": name},
		})
	})
}
