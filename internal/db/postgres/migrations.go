package postgres

// SQL-миграции встроены в код для упрощения деплоя.
// Очки хранятся в десятых долях (BIGINT), см. points.Points.
var migrations = []struct {
	version int
	sql     string
}{
	{1, migration001Accounts},
	{2, migration002Content},
	{3, migration003Reactions},
	{4, migration004Comments},
	{5, migration005AwardEvents},
	{6, migration006ProcessedRequests},
}

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT UNIQUE,
    username VARCHAR(255) NOT NULL DEFAULT '',
    full_name VARCHAR(255) NOT NULL DEFAULT '',
    class_instance_id BIGINT NOT NULL,
    role VARCHAR(32) NOT NULL DEFAULT 'student',
    points BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_class_points ON accounts(class_instance_id, points DESC, id);
`

var migration002Content = `
CREATE TABLE IF NOT EXISTS content_items (
    id BIGSERIAL PRIMARY KEY,
    class_instance_id BIGINT NOT NULL,
    unit_name VARCHAR(255) NOT NULL DEFAULT '',
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content_type VARCHAR(32) NOT NULL,
    file_path TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    owner_id BIGINT NOT NULL REFERENCES accounts(id),
    points_earned BIGINT NOT NULL DEFAULT 0,
    like_count INTEGER NOT NULL DEFAULT 0,
    dislike_count INTEGER NOT NULL DEFAULT 0,
    deadline TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_content_items_class ON content_items(class_instance_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_content_items_owner ON content_items(owner_id);
`

var migration003Reactions = `
CREATE TABLE IF NOT EXISTS reactions (
    item_id BIGINT NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    state VARCHAR(16) NOT NULL CHECK (state IN ('none', 'like', 'dislike')),
    version BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (item_id, account_id)
);
`

var migration004Comments = `
CREATE TABLE IF NOT EXISTS comments (
    id UUID PRIMARY KEY,
    item_id BIGINT NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
    author_id BIGINT NOT NULL REFERENCES accounts(id),
    text TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_comments_item ON comments(item_id, created_at);
`

var migration005AwardEvents = `
CREATE TABLE IF NOT EXISTS award_events (
    event_key VARCHAR(255) PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    item_id BIGINT NOT NULL,
    delta BIGINT NOT NULL,
    reason VARCHAR(32) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_award_events_account ON award_events(account_id, created_at);
`

// Нажатия кнопок, уже применённые к журналу реакций (ключ - ID callback query).
var migration006ProcessedRequests = `
CREATE TABLE IF NOT EXISTS processed_requests (
    request_key VARCHAR(255) PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
