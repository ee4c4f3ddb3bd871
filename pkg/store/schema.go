package store

// Schema for the proxies table. Executed on connect; all statements are
// idempotent so any worker can bootstrap a fresh database.
const createSchema = `
CREATE TABLE IF NOT EXISTS proxies (
    id BIGSERIAL PRIMARY KEY,
    ip VARCHAR(45) NOT NULL,
    port INTEGER NOT NULL CHECK (port >= 1 AND port <= 65535),
    protocol VARCHAR(10) NOT NULL CHECK (protocol IN ('http', 'https', 'socks4', 'socks5')),
    country VARCHAR(2),
    anonymity VARCHAR(20) CHECK (anonymity IN ('transparent', 'anonymous', 'elite')),
    source VARCHAR(100) NOT NULL,
    speed DOUBLE PRECISION,
    success_count INTEGER NOT NULL DEFAULT 0,
    fail_count INTEGER NOT NULL DEFAULT 0,
    status INTEGER NOT NULL DEFAULT 0,
    last_checked TIMESTAMPTZ,
    last_success TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (ip, port, protocol)
);

CREATE INDEX IF NOT EXISTS idx_proxies_country ON proxies(country);
CREATE INDEX IF NOT EXISTS idx_proxies_protocol ON proxies(protocol);
CREATE INDEX IF NOT EXISTS idx_proxies_status ON proxies(status);
CREATE INDEX IF NOT EXISTS idx_proxies_fail_count ON proxies(fail_count);
CREATE INDEX IF NOT EXISTS idx_proxies_last_success ON proxies(last_success);
CREATE INDEX IF NOT EXISTS idx_proxies_quality ON proxies(success_count DESC, speed ASC);
`
