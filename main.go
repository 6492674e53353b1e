package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"paper-intake/config"
	"paper-intake/models"
	"paper-intake/providers/llm"
	"paper-intake/providers/pdfservice"
	"paper-intake/services"
	"paper-intake/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	papersProcessedCounter prometheus.Counter
	papersRejectedCounter  prometheus.Counter
	authorsMatchedCounter  prometheus.Counter
)

func init() {
	papersProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_processed_total",
		Help: "Total number of papers successfully processed by the pipeline.",
	})
	papersRejectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_rejected_total",
		Help: "Total number of papers rejected because too many fields had no text.",
	})
	authorsMatchedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authors_matched_total",
		Help: "Total number of author spellings processed by the batch matcher.",
	})
	prometheus.MustRegister(papersProcessedCounter, papersRejectedCounter, authorsMatchedCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	store, err := storage.Open(cfg.DBPath, logging)
	if err != nil {
		logging.Fatal("Failed to open database", zap.Error(err))
	}
	logging.Info("Database ready.", zap.String("path", cfg.DBPath))

	files, err := storage.NewFileStore(cfg.UploadDir, cfg.ResolveDir)
	if err != nil {
		logging.Fatal("Failed to prepare file directories", zap.Error(err))
	}

	fieldSpecs, err := services.LoadFieldSpecs(cfg.FieldSpecPath)
	if err != nil {
		logging.Fatal("Failed to load field registry", zap.Error(err))
	}
	logging.Info("Field registry loaded.", zap.Int("fields", len(fieldSpecs)))

	// Setup Services
	llmClient := llm.NewClient(cfg, logging)
	pdfClient := pdfservice.NewClient(cfg, logging)
	extractor := services.NewFieldExtractor(fieldSpecs, llmClient, logging)
	normalizer := services.NewNormalizer(logging)
	ingest := services.NewIngestService(cfg, store, files, pdfClient, extractor, normalizer, logging)
	resolver := services.NewResolver(cfg, store, llmClient, logging)
	claims := services.NewClaimService(store, logging)
	identities := services.NewIdentityService(store, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Setup Routes
	setupPaperRoutes(router, cfg, store, ingest, logging)
	setupAuthorRoutes(router, resolver, logging)
	setupClaimRoutes(router, claims, logging)
	setupIdentityRoutes(router, cfg, store, identities, logging)

	// Setup Cron: nächtlicher Varianten-Sync plus Batch-Autorenabgleich
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled identity maintenance...")
		added, err := identities.SyncAllVariants(context.Background(), cfg.AdminID)
		if err != nil {
			logging.Error("Variant sync failed", zap.Error(err))
		} else {
			logging.Info("Variant sync completed", zap.Int("variants_added", added))
		}
		matched, err := resolver.MatchAuthorsBatch(context.Background(), 0)
		if err != nil {
			logging.Error("Batch author matching failed", zap.Error(err))
		} else {
			logging.Info("Batch author matching completed", zap.Int("authors_processed", matched))
			authorsMatchedCounter.Add(float64(matched))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupPaperRoutes(router *gin.Engine, cfg *config.Config, store *storage.Store, ingest *services.IngestService, log *zap.Logger) {
	rg := router.Group("/papers")

	// Upload und kompletter Pipeline-Lauf
	rg.POST("/", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
			return
		}
		actor := c.PostForm("actor_id")
		if actor == "" {
			actor = cfg.AdminID
		}
		force := c.Query("force") == "true"

		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}

		result, err := ingest.ProcessPDF(c.Request.Context(), fileHeader.Filename, data, actor, force)
		if err != nil {
			var rejection *services.RejectionError
			var serviceErr *pdfservice.ServiceError
			switch {
			case errors.As(err, &rejection):
				papersRejectedCounter.Inc()
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error":         rejection.Error(),
					"no_text_count": rejection.NoTextCount,
					"result":        result,
				})
			case errors.As(err, &serviceErr):
				log.Error("PDF service call failed", zap.String("kind", string(serviceErr.Kind)), zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": serviceErr.Error(), "kind": serviceErr.Kind})
			default:
				log.Error("Paper processing failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			}
			return
		}
		if result.Duplicate && result.Paper == nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "duplicate upload, retry with ?force=true to reprocess",
				"result": result,
			})
			return
		}

		papersProcessedCounter.Inc()
		c.JSON(http.StatusOK, result)
	})

	// Body-gesteuerter Endpunkt für gefilterte Abfragen
	rg.POST("/query", func(c *gin.Context) {
		var req storage.PaperFilter
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		papers, err := store.QueryPapers(c.Request.Context(), req)
		if err != nil {
			log.Error("Database query for papers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.GET("/mine", func(c *gin.Context) {
		identityID := c.Query("identity_id")
		if identityID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identity_id is required"})
			return
		}
		papers, err := store.PapersByIdentity(c.Request.Context(), identityID)
		if err != nil {
			log.Error("Database query for linked papers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.GET("/:pdf", func(c *gin.Context) {
		paper, authors, err := store.GetPaper(c.Request.Context(), c.Param("pdf"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			log.Error("Database query for paper failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"paper": paper, "authors": authors})
	})

	// Admin: Paper samt Autorzeilen und Dateien entfernen
	rg.DELETE("/:pdf", func(c *gin.Context) {
		pdf := c.Param("pdf")
		if err := ingest.DeletePaper(c.Request.Context(), pdf); err != nil {
			log.Error("Paper deletion failed", zap.String("pdf", pdf), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": pdf})
	})
}

func setupAuthorRoutes(router *gin.Engine, resolver *services.Resolver, log *zap.Logger) {
	rg := router.Group("/authors")

	rg.POST("/search", func(c *gin.Context) {
		type SearchQuery struct {
			NameVariants []string `json:"name_variants"`
			LinkedName   string   `json:"linked_name"`
		}
		var req SearchQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		rows, err := resolver.SearchAuthors(c.Request.Context(), req.NameVariants, req.LinkedName)
		if err != nil {
			log.Error("Author search failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, rows)
	})

	rg.POST("/resolve", func(c *gin.Context) {
		type ResolveQuery struct {
			Author string `json:"author" binding:"required"`
		}
		var req ResolveQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		resolution, err := resolver.ResolveAuthor(c.Request.Context(), req.Author)
		if err != nil {
			log.Error("Author resolution failed", zap.String("author", req.Author), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "resolution failed"})
			return
		}
		c.JSON(http.StatusOK, resolution)
	})

	// Manueller Anstoß des Batch-Abgleichs
	rg.POST("/match-batch", func(c *gin.Context) {
		type BatchQuery struct {
			Limit int `json:"limit"`
		}
		var req BatchQuery
		_ = c.ShouldBindJSON(&req)
		processed, err := resolver.MatchAuthorsBatch(c.Request.Context(), req.Limit)
		if err != nil {
			log.Error("Batch author matching failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "batch matching failed", "processed": processed})
			return
		}
		authorsMatchedCounter.Add(float64(processed))
		c.JSON(http.StatusOK, gin.H{"processed": processed})
	})
}

func setupClaimRoutes(router *gin.Engine, claims *services.ClaimService, log *zap.Logger) {
	rg := router.Group("/claims")

	rg.POST("/", func(c *gin.Context) {
		var req services.ClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		outcome, err := claims.Claim(c.Request.Context(), req)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "author row not found"})
				return
			}
			log.Error("Claim failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claim failed"})
			return
		}
		c.JSON(http.StatusOK, outcome)
	})

	rg.POST("/resolve", func(c *gin.Context) {
		type ResolveRequest struct {
			services.ClaimRequest
			IdentityID string `json:"identity_id" binding:"required"`
		}
		var req ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		outcome, err := claims.Resolve(c.Request.Context(), req.ClaimRequest, req.IdentityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "author row or identity not found"})
				return
			}
			if errors.Is(err, services.ErrCandidateMismatch) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "identity is not a candidate for this claim"})
				return
			}
			log.Error("Claim resolution failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claim resolution failed"})
			return
		}
		c.JSON(http.StatusOK, outcome)
	})
}

func setupIdentityRoutes(router *gin.Engine, cfg *config.Config, store *storage.Store, identities *services.IdentityService, log *zap.Logger) {
	rg := router.Group("/identities")

	// Anlegen oder Aktualisieren; REG-Audit-Spalten überleben Updates
	rg.POST("/", func(c *gin.Context) {
		var identity models.Identity
		if err := c.ShouldBindJSON(&identity); err != nil || identity.ID == "" || identity.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id and name are required"})
			return
		}
		actor := c.Query("actor_id")
		if actor == "" {
			actor = cfg.AdminID
		}
		if err := store.UpsertIdentities(c.Request.Context(), []models.Identity{identity}, actor); err != nil {
			log.Error("Identity upsert failed", zap.String("id", identity.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, identity)
	})

	rg.GET("/:id", func(c *gin.Context) {
		identity, err := store.GetIdentity(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
				return
			}
			log.Error("Database query for identity failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, identity)
	})

	rg.POST("/:id/name-variants", func(c *gin.Context) {
		type VariantRequest struct {
			Name string `json:"name" binding:"required"`
		}
		var req VariantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		id := c.Param("id")
		identity, err := identities.AddNameVariant(c.Request.Context(), id, req.Name, id)
		if err != nil {
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
			case errors.Is(err, services.ErrVariantExists):
				c.JSON(http.StatusConflict, gin.H{"error": "name variant already registered"})
			case errors.Is(err, services.ErrVariantSlotsFull):
				c.JSON(http.StatusConflict, gin.H{"error": "all name variant slots are in use"})
			default:
				log.Error("Adding name variant failed", zap.String("id", id), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		c.JSON(http.StatusOK, identity)
	})

	rg.POST("/:id/sync-variants", func(c *gin.Context) {
		id := c.Param("id")
		added, err := identities.SyncVariants(c.Request.Context(), id, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
				return
			}
			log.Error("Variant sync failed", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"variants_added": added})
	})
}
