// Package api contains all endpoints available
package api

import (
	"context"
	"fmt"
	"time"

	"krisbot/chat-api/db"
	"krisbot/chat-api/internal/service/ai"
	"krisbot/chat-api/internal/storage"
	"krisbot/chat-api/pkg/middleware"
	"krisbot/chat-api/pkg/security"

	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

type API struct {
	DB      *gorm.DB
	Router  *gin.Engine
	Argon   *security.ArgonHash
	Storage storage.Backend
	AI      *ai.Service
}

func NewRouter() (*API, error) {
	a := &API{}

	conn, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = conn

	makeLogger()

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors_origins"),
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	a.Router.MaxMultipartMemory = 5 << 20

	jwt := middleware.NewJWTMiddleware(conn)
	authLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             10,
	})
	maxUploadSize := viper.GetInt64("upload.max_size")

	// GET / 				-> Reports that the API is up
	router.GET("/", a.Root)

	// GET /health 				-> Liveness check
	router.GET("/health", a.Health)

	main := router.Group("/api")

	auth := main.Group("/auth", middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/auth/register 	-> Registers a new user
		auth.POST("/register", authLimiter, a.UserRegister)

		// POST /api/auth/login 	-> Logs in a user and returns a bearer token
		auth.POST("/login", authLimiter, a.UserLogin)

		// GET /api/auth/me 		-> Returns the authenticated user
		auth.GET("/me", jwt, a.UserMe)
	}

	chat := main.Group("/chat", jwt, middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/chat/send 		-> Sends a message and returns the assistant reply
		chat.POST("/send", a.ChatSend)

		// GET /api/chat/history 	-> Returns the user's conversations
		chat.GET("/history", a.ChatHistory)

		// DELETE /api/chat/history/:id	-> Deletes one conversation
		chat.DELETE("/history/:id", a.ChatDelete)
	}

	files := main.Group("/files", jwt)
	{
		// POST /api/files/upload 	-> Uploads a file into the user's namespace
		files.POST("/upload", middleware.BodySizeLimiter(maxUploadSize+(1<<20)), a.FileUpload)

		// GET /api/files/list 		-> Lists the user's files
		files.GET("/list", a.FileList)

		// DELETE /api/files/:filename	-> Deletes a file owned by the user
		files.DELETE("/:filename", a.FileDelete)
	}

	a.Argon = security.NewArgon()
	a.AI = ai.NewService()

	switch viper.GetString("storage.type") {
	case "s3":
		s3, err := storage.NewS3(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage, %w", err)
		}
		a.Storage = s3
	default:
		local, err := storage.NewLocal(viper.GetString("storage.upload_dir"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage, %w", err)
		}
		a.Storage = local
	}

	return a, nil
}

// Close releases the database handle. Called on shutdown.
func (a *API) Close() error {
	return db.Close(a.DB)
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	var level zapcore.Level
	if err := level.Set(viper.GetString("app.log_level")); err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}
