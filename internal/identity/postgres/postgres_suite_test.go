// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/identity/internal/identity"
	identitypg "github.com/holomush/identity/internal/identity/postgres"
	"github.com/holomush/identity/internal/password"
	"github.com/holomush/identity/internal/store"
	"github.com/holomush/identity/internal/token"
)

func TestIdentityPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Identity Postgres Suite")
}

var (
	container *postgres.PostgresContainer
	testPool  *pgxpool.Pool
	services  *serviceSet
)

type serviceSet struct {
	register *identity.RegistrationService
	auth     *identity.AuthService
	refresh  *identity.RefreshService
	password *identity.PasswordService
	account  *identity.AccountService
	access   *token.AccessIssuer
}

var _ = BeforeSuite(func() {
	ctx := context.Background()
	var err error
	container, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("identity_test"),
		postgres.WithUsername("identity"),
		postgres.WithPassword("identity"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	testPool, err = store.Connect(ctx, store.ConnectOptions{URL: connStr, MaxConns: 20})
	Expect(err).NotTo(HaveOccurred())

	services = newServices()
})

var _ = AfterSuite(func() {
	if testPool != nil {
		testPool.Close()
	}
	if container != nil {
		Expect(container.Terminate(context.Background())).To(Succeed())
	}
})

var _ = BeforeEach(func(ctx SpecContext) {
	_, err := testPool.Exec(ctx, `TRUNCATE user_sessions, user_secrets, user_credentials, users`)
	Expect(err).NotTo(HaveOccurred())
})

func newServices() *serviceSet {
	hasher, err := password.NewArgon2(password.Params{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	Expect(err).NotTo(HaveOccurred())
	refresh, err := token.NewRefreshGenerator(token.DefaultRefreshBytes)
	Expect(err).NotTo(HaveOccurred())
	access, err := token.NewAccessIssuer(token.AccessConfig{Secret: []byte("0123456789abcdef0123456789abcdef")})
	Expect(err).NotTo(HaveOccurred())
	dummy, err := hasher.DummyDigest()
	Expect(err).NotTo(HaveOccurred())

	deps := identity.Deps{
		Store:        identitypg.New(testPool),
		Hasher:       hasher,
		Verifier:     hasher,
		Tokens:       refresh,
		AccessTokens: access,
		DummyDigest:  dummy,
	}

	set := &serviceSet{access: access}
	set.register, err = identity.NewRegistrationService(deps)
	Expect(err).NotTo(HaveOccurred())
	set.auth, err = identity.NewAuthService(deps)
	Expect(err).NotTo(HaveOccurred())
	set.refresh, err = identity.NewRefreshService(deps)
	Expect(err).NotTo(HaveOccurred())
	set.password, err = identity.NewPasswordService(deps)
	Expect(err).NotTo(HaveOccurred())
	set.account, err = identity.NewAccountService(deps)
	Expect(err).NotTo(HaveOccurred())
	return set
}

func countRows(ctx context.Context, query string, args ...any) int {
	var n int
	Expect(testPool.QueryRow(ctx, query, args...).Scan(&n)).To(Succeed())
	return n
}

var _ = Describe("Registration", func() {
	It("creates user, credential and secret together", func(ctx SpecContext) {
		Expect(services.register.Register(ctx, "  Alice ", "correct horse")).To(Succeed())

		Expect(countRows(ctx, `SELECT count(*) FROM users`)).To(Equal(1))
		Expect(countRows(ctx, `SELECT count(*) FROM user_credentials WHERE login = 'alice'`)).To(Equal(1))
		Expect(countRows(ctx, `SELECT count(*) FROM user_secrets WHERE password_digest LIKE '$argon2id$%'`)).To(Equal(1))
	})

	It("rejects a taken login and leaves no orphan user", func(ctx SpecContext) {
		Expect(services.register.Register(ctx, "alice", "correct horse")).To(Succeed())

		err := services.register.Register(ctx, "ALICE", "another pass")
		Expect(identity.KindOf(err)).To(Equal(identity.KindDuplicateLogin))
		Expect(countRows(ctx, `SELECT count(*) FROM users`)).To(Equal(1))
	})
})

var _ = Describe("Authentication", func() {
	BeforeEach(func(ctx SpecContext) {
		Expect(services.register.Register(ctx, "alice", "correct horse")).To(Succeed())
	})

	It("issues tokens, confirms the credential and opens one live session", func(ctx SpecContext) {
		tokens, err := services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(err).NotTo(HaveOccurred())
		Expect(tokens.RefreshToken).To(HaveLen(64))

		subject, err := services.access.Parse(tokens.AccessToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(subject).To(Equal(tokens.UserID))

		Expect(countRows(ctx, `SELECT count(*) FROM user_credentials WHERE confirmed_at IS NOT NULL`)).To(Equal(1))
		Expect(countRows(ctx, `SELECT count(*) FROM user_sessions WHERE disabled_at IS NULL AND refresh_token_hash = $1`,
			token.Hash(tokens.RefreshToken))).To(Equal(1))
	})

	It("keeps a single live session across logins", func(ctx SpecContext) {
		for range 3 {
			_, err := services.auth.Authenticate(ctx, "alice", "correct horse")
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(countRows(ctx, `SELECT count(*) FROM user_sessions`)).To(Equal(3))
		Expect(countRows(ctx, `SELECT count(*) FROM user_sessions WHERE disabled_at IS NULL`)).To(Equal(1))
	})

	It("locks the credential after repeated failures", func(ctx SpecContext) {
		for range identity.DefaultLockoutThreshold {
			_, err := services.auth.Authenticate(ctx, "alice", "wrong")
			Expect(identity.KindOf(err)).To(Equal(identity.KindInvalidCredentials))
		}
		Expect(countRows(ctx, `SELECT count(*) FROM user_credentials WHERE locked_until > now()`)).To(Equal(1))

		_, err := services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(identity.KindOf(err)).To(Equal(identity.KindTemporarilyLocked))
		Expect(countRows(ctx, `SELECT count(*) FROM user_sessions`)).To(BeZero())
	})

	It("hides soft-deleted users until restored", func(ctx SpecContext) {
		tokens, err := services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(err).NotTo(HaveOccurred())

		Expect(services.account.SoftDelete(ctx, tokens.UserID)).To(Succeed())
		_, err = services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(identity.KindOf(err)).To(Equal(identity.KindInvalidCredentials))

		Expect(services.account.Restore(ctx, tokens.UserID)).To(Succeed())
		_, err = services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Refresh", func() {
	var first *identity.Tokens

	BeforeEach(func(ctx SpecContext) {
		Expect(services.register.Register(ctx, "alice", "correct horse")).To(Succeed())
		var err error
		first, err = services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(err).NotTo(HaveOccurred())
	})

	It("rotates and refuses replay", func(ctx SpecContext) {
		second, err := services.refresh.Refresh(ctx, first.RefreshToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.RefreshToken).NotTo(Equal(first.RefreshToken))
		Expect(second.UserID).To(Equal(first.UserID))

		_, err = services.refresh.Refresh(ctx, first.RefreshToken)
		Expect(identity.KindOf(err)).To(Equal(identity.KindReauthRequired))

		_, err = services.refresh.Refresh(ctx, second.RefreshToken)
		Expect(err).NotTo(HaveOccurred())
	})

	It("refuses a deleted user and burns the token", func(ctx SpecContext) {
		Expect(services.account.SoftDelete(ctx, first.UserID)).To(Succeed())

		_, err := services.refresh.Refresh(ctx, first.RefreshToken)
		Expect(identity.KindOf(err)).To(Equal(identity.KindReauthRequired))
		Expect(countRows(ctx, `SELECT count(*) FROM user_sessions WHERE disabled_at IS NULL`)).To(BeZero())

		Expect(services.account.Restore(ctx, first.UserID)).To(Succeed())
		_, err = services.refresh.Refresh(ctx, first.RefreshToken)
		Expect(identity.KindOf(err)).To(Equal(identity.KindReauthRequired))
	})

	It("lets exactly one concurrent refresher win", func(ctx SpecContext) {
		const racers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range racers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := services.refresh.Refresh(ctx, first.RefreshToken)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				Expect(identity.KindOf(err)).To(Equal(identity.KindReauthRequired))
			}()
		}
		wg.Wait()

		Expect(wins).To(Equal(1))
		Expect(countRows(ctx, `SELECT count(*) FROM user_sessions WHERE disabled_at IS NULL`)).To(Equal(1))
	})
})

var _ = Describe("Password change", func() {
	It("replaces the digest", func(ctx SpecContext) {
		Expect(services.register.Register(ctx, "alice", "correct horse")).To(Succeed())
		tokens, err := services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(err).NotTo(HaveOccurred())

		Expect(services.password.ChangePassword(ctx, tokens.UserID, "correct horse", "battery staple")).To(Succeed())

		_, err = services.auth.Authenticate(ctx, "alice", "correct horse")
		Expect(identity.KindOf(err)).To(Equal(identity.KindInvalidCredentials))
		_, err = services.auth.Authenticate(ctx, "alice", "battery staple")
		Expect(err).NotTo(HaveOccurred())
	})
})
