package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/wispr-bot/internal/models"
)

//go:embed schema.sql
var schema embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	schemaSQL, err := schema.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %v", err)
	}

	if _, err := s.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("error executing schema: %v", err)
	}

	return nil
}

// User methods

func (s *PostgresStorage) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
		SELECT telegram_id, username, first_name, last_name, is_allowed,
		       openai_api_key, preferred_model, created_at, last_active
		FROM users
		WHERE telegram_id = $1`

	user := &models.User{}
	var username, firstName, lastName, apiKey, preferredModel sql.NullString

	err := s.db.QueryRowContext(ctx, query, telegramID).Scan(
		&user.TelegramID,
		&username,
		&firstName,
		&lastName,
		&user.IsAllowed,
		&apiKey,
		&preferredModel,
		&user.CreatedAt,
		&user.LastActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}

	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.OpenAIAPIKey = apiKey.String
	user.PreferredModel = preferredModel.String

	return user, nil
}

func (s *PostgresStorage) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users
		(telegram_id, username, first_name, last_name, is_allowed, openai_api_key, preferred_model, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			username = $2,
			first_name = $3,
			last_name = $4,
			is_allowed = $5,
			openai_api_key = $6,
			preferred_model = $7,
			last_active = $9`

	_, err := s.db.ExecContext(ctx, query,
		user.TelegramID,
		nullable(user.Username),
		nullable(user.FirstName),
		nullable(user.LastName),
		user.IsAllowed,
		nullable(user.OpenAIAPIKey),
		nullable(user.PreferredModel),
		user.CreatedAt,
		user.LastActive,
	)
	if err != nil {
		return fmt.Errorf("error upserting user: %v", err)
	}

	return nil
}

func (s *PostgresStorage) SetUserAllowed(ctx context.Context, telegramID int64, allowed bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_allowed = $1 WHERE telegram_id = $2`,
		allowed, telegramID)
	if err != nil {
		return fmt.Errorf("error updating user allowed status: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SetUserAPIKey(ctx context.Context, telegramID int64, apiKey string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET openai_api_key = $1 WHERE telegram_id = $2`,
		nullable(apiKey), telegramID)
	if err != nil {
		return fmt.Errorf("error updating user API key: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SetUserPreferredModel(ctx context.Context, telegramID int64, model string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET preferred_model = $1 WHERE telegram_id = $2`,
		nullable(model), telegramID)
	if err != nil {
		return fmt.Errorf("error updating user preferred model: %v", err)
	}
	return nil
}

func (s *PostgresStorage) ListAllowedUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT telegram_id, username, first_name, last_name, is_allowed,
		       openai_api_key, preferred_model, created_at, last_active
		FROM users
		WHERE is_allowed = TRUE
		ORDER BY telegram_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying allowed users: %v", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		var username, firstName, lastName, apiKey, preferredModel sql.NullString

		err := rows.Scan(
			&user.TelegramID,
			&username,
			&firstName,
			&lastName,
			&user.IsAllowed,
			&apiKey,
			&preferredModel,
			&user.CreatedAt,
			&user.LastActive,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %v", err)
		}

		user.Username = username.String
		user.FirstName = firstName.String
		user.LastName = lastName.String
		user.OpenAIAPIKey = apiKey.String
		user.PreferredModel = preferredModel.String
		users = append(users, user)
	}

	return users, rows.Err()
}

// Chat methods

func (s *PostgresStorage) CreateChat(ctx context.Context, userID int64, title, model, systemPrompt string) (*models.Chat, error) {
	query := `
		INSERT INTO chats (user_id, title, model, system_prompt)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	chat := &models.Chat{
		UserID:       userID,
		Title:        title,
		Model:        model,
		SystemPrompt: systemPrompt,
	}

	err := s.db.QueryRowContext(ctx, query,
		userID, title, model, nullable(systemPrompt),
	).Scan(&chat.ID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating chat: %v", err)
	}

	return chat, nil
}

func (s *PostgresStorage) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	query := `
		SELECT id, user_id, title, model, system_prompt, created_at, updated_at
		FROM chats
		WHERE id = $1`

	chat := &models.Chat{}
	var systemPrompt sql.NullString

	err := s.db.QueryRowContext(ctx, query, chatID).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.Model,
		&systemPrompt,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying chat: %v", err)
	}
	chat.SystemPrompt = systemPrompt.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, timestamp FROM messages WHERE chat_id = $1 ORDER BY timestamp ASC, id ASC`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("error querying chat messages: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning chat message: %v", err)
		}
		chat.Messages = append(chat.Messages, msg)
	}

	return chat, rows.Err()
}

func (s *PostgresStorage) ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	query := `
		SELECT id, title, model, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying chats: %v", err)
	}
	defer rows.Close()

	var chats []models.ChatSummary
	for rows.Next() {
		var c models.ChatSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning chat summary: %v", err)
		}
		chats = append(chats, c)
	}

	return chats, rows.Err()
}

// AppendMessage inserts the message and bumps the chat's updated_at in one
// transaction, so a partial failure never leaves the two out of step.
func (s *PostgresStorage) AppendMessage(ctx context.Context, chatID int64, role models.Role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (chat_id, role, content) VALUES ($1, $2, $3)`,
		chatID, string(role), content)
	if err != nil {
		return fmt.Errorf("error adding message: %v", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = $1 WHERE id = $2`,
		time.Now(), chatID)
	if err != nil {
		return fmt.Errorf("error updating chat timestamp: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing message: %v", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteChat(ctx context.Context, chatID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("error deleting chat: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %v", err)
	}

	return affected > 0, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
