package storage

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           BIGSERIAL PRIMARY KEY,
		name         TEXT NOT NULL,
		email        TEXT NOT NULL DEFAULT '',
		kindle_email TEXT NOT NULL DEFAULT '',
		active       BOOLEAN NOT NULL DEFAULT TRUE,
		topics       TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id      BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name    TEXT NOT NULL,
		url     TEXT NOT NULL,
		active  BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS news_history (
		id           BIGSERIAL PRIMARY KEY,
		user_id      BIGINT NOT NULL,
		title        TEXT NOT NULL,
		url          TEXT NOT NULL CHECK (url <> ''),
		published_at TIMESTAMPTZ NULL,
		delivered_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS news_history_user_url ON news_history (user_id, url)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL,
		email        TEXT NOT NULL DEFAULT '',
		kindle_email TEXT NOT NULL DEFAULT '',
		active       BOOLEAN NOT NULL DEFAULT 1,
		topics       TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name    TEXT NOT NULL,
		url     TEXT NOT NULL,
		active  BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS news_history (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id      INTEGER NOT NULL,
		title        TEXT NOT NULL,
		url          TEXT NOT NULL CHECK (url <> ''),
		published_at TIMESTAMP NULL,
		delivered_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS news_history_user_url ON news_history (user_id, url)`,
}
