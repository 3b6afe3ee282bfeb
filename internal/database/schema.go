package database

// Schema is applied on startup; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS crosssale_products (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	product_type TEXT NOT NULL CHECK (product_type IN ('services', 'products'))
);

CREATE TABLE IF NOT EXISTS crosssale_clients (
	id  UUID PRIMARY KEY,
	sex TEXT NOT NULL CHECK (sex IN ('Male', 'Female'))
);

CREATE TABLE IF NOT EXISTS crosssale_reports (
	id               BIGSERIAL PRIMARY KEY,
	sex              TEXT NOT NULL,
	selected_product UUID NOT NULL,
	proposed_product UUID NOT NULL,
	success          BOOLEAN NOT NULL,
	received_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS crosssale_reports_pair_idx
	ON crosssale_reports (sex, selected_product, proposed_product);

CREATE TABLE IF NOT EXISTS crosssale_recommendations (
	sex              TEXT NOT NULL,
	selected_product UUID NOT NULL,
	proposed_product UUID NOT NULL,
	certainty        DOUBLE PRECISION NOT NULL CHECK (certainty >= 0 AND certainty <= 1),
	displays         INTEGER NOT NULL DEFAULT 0,
	acceptances      INTEGER NOT NULL DEFAULT 0,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (sex, selected_product, proposed_product)
);
`
