package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/logging"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/permissions"
)

func main() {
	cfg := config.GetCached()

	// 命令行参数优先于环境变量
	dsn := flag.String("dsn", cfg.PostgresDSN, "PostgreSQL DSN (defaults to POSTGRES_DSN)")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "SQLite file used when no DSN is given")
	overwrite := flag.Bool("overwrite", false, "reset role sets of existing permissions to the defaults")
	adminEmail := flag.String("admin", "", "promote the user with this email to global admin")
	flag.Parse()

	log := logging.New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	target := *sqlitePath
	if *dsn != "" {
		target = maskPassword(*dsn)
	}
	fmt.Printf("🔗 Connecting to database: %s\n", target)

	db, err := database.NewDatabase(ctx, database.DatabaseConfig{PostgresDSN: *dsn, SQLitePath: *sqlitePath}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	fmt.Println("✅ Database connection successful")

	fmt.Println("📄 Applying schema...")
	if err := db.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🔐 Seeding permission catalog...")
	if err := permissions.Seed(ctx, db, permissions.DefaultCatalog(), *overwrite, log); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to seed permissions: %v\n", err)
		os.Exit(1)
	}

	// 验证权限目录是否完整
	perms, err := db.ListPermissions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to list permissions: %v\n", err)
		os.Exit(1)
	}
	if err := permissions.ValidateCatalog(perms); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Permission catalog is incomplete: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %d permissions in catalog\n", len(perms))

	if *adminEmail != "" {
		if err := promote(ctx, db, *adminEmail); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to promote %s: %v\n", *adminEmail, err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s is now a global admin\n", *adminEmail)
	}

	fmt.Println("🎉 Database setup completed! Run 'go run ./cmd/server' or 'vercel dev' to start the API.")
}

func promote(ctx context.Context, db database.DatabaseInterface, email string) error {
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	user.Role = models.GlobalRoleAdmin
	return db.UpdateUser(ctx, user)
}

// maskPassword 隐藏连接字符串中的密码
func maskPassword(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	if len(dsn) > 10 {
		return dsn[:10] + "***"
	}
	return "***"
}
