// Package menu is the interactive console front-end. It talks to the same
// services as the HTTP API and stops on Exit, end of input or context cancellation.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library_backend/models"
	"library_backend/service"
)

var errExit = errors.New("exit")

type Menu struct {
	catalog  *service.CatalogService
	identity *service.IdentityService
	loans    *service.LoanService

	in  *bufio.Reader
	out io.Writer

	// ReadPassword reads a secret line; defaults to a plain line read.
	ReadPassword func() (string, error)
	// AllowAdminSignup lets the register screen create ADMIN accounts.
	AllowAdminSignup bool

	user *models.User
}

func New(catalog *service.CatalogService, identity *service.IdentityService, loans *service.LoanService, in io.Reader, out io.Writer) *Menu {
	m := &Menu{
		catalog:  catalog,
		identity: identity,
		loans:    loans,
		in:       bufio.NewReader(in),
		out:      out,
	}
	m.ReadPassword = m.nextLine
	return m
}

// Run shows the menu for the current role until the user exits or ctx is done.
func (m *Menu) Run(ctx context.Context) error {
	m.println("===================================")
	m.println("   LIBRARY MANAGEMENT SYSTEM")
	m.println("===================================")
	for {
		var err error
		switch {
		case m.user == nil:
			err = m.loginMenu(ctx)
		case m.user.IsAdmin():
			err = m.adminMenu(ctx)
		default:
			err = m.studentMenu(ctx)
		}
		if errors.Is(err, errExit) || errors.Is(err, io.EOF) {
			m.println("\nGoodbye!")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (m *Menu) println(a ...any)               { fmt.Fprintln(m.out, a...) }
func (m *Menu) printf(format string, a ...any) { fmt.Fprintf(m.out, format, a...) }

func (m *Menu) nextLine() (string, error) {
	s, err := m.in.ReadString('\n')
	if err != nil && (s == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// await runs a blocking read off the caller's goroutine so ctx can interrupt it.
func await(ctx context.Context, read func() (string, error)) (string, error) {
	type result struct {
		s   string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := read()
		ch <- result{s, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.s, r.err
	}
}

func (m *Menu) prompt(ctx context.Context, label string) (string, error) {
	m.printf("%s", label)
	s, err := await(ctx, m.nextLine)
	return strings.TrimSpace(s), err
}

func (m *Menu) promptPassword(ctx context.Context, label string) (string, error) {
	m.printf("%s", label)
	return await(ctx, m.ReadPassword)
}

// promptInt 反复提示直到输入合法整数
func (m *Menu) promptInt(ctx context.Context, label string) (int, error) {
	m.printf("%s", label)
	for {
		s, err := await(ctx, m.nextLine)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil {
			return n, nil
		}
		m.printf("Invalid input. Please enter a number: ")
	}
}

func (m *Menu) promptID(ctx context.Context, label string) (uint, error) {
	n, err := m.promptInt(ctx, label)
	if err != nil || n < 0 {
		return 0, err
	}
	return uint(n), nil
}

func (m *Menu) success(msg string) { m.printf("\n✓ %s\n", msg) }
func (m *Menu) failure(err error)  { m.printf("\n✗ %s\n", service.MessageOf(err)) }

func (m *Menu) loginMenu(ctx context.Context) error {
	m.println("\n--- MAIN MENU ---")
	m.println("1. Login")
	m.println("2. Register")
	m.println("3. Exit")
	choice, err := m.promptInt(ctx, "Choose an option: ")
	if err != nil {
		return err
	}
	switch choice {
	case 1:
		return m.handleLogin(ctx)
	case 2:
		return m.handleRegistration(ctx)
	case 3:
		return errExit
	default:
		m.println("Invalid option. Please try again.")
	}
	return nil
}

func (m *Menu) handleLogin(ctx context.Context) error {
	username, err := m.prompt(ctx, "\nUsername: ")
	if err != nil {
		return err
	}
	password, err := m.promptPassword(ctx, "Password: ")
	if err != nil {
		return err
	}
	u, err := m.identity.Login(ctx, username, password)
	if err != nil {
		m.failure(err)
		return nil
	}
	m.user = u
	m.success("Login successful! Welcome, " + u.FullName)
	return nil
}

func (m *Menu) handleRegistration(ctx context.Context) error {
	m.println("\n--- REGISTRATION ---")
	var in service.Registration
	var err error
	if in.Username, err = m.prompt(ctx, "Username: "); err != nil {
		return err
	}
	if in.Password, err = m.promptPassword(ctx, "Password: "); err != nil {
		return err
	}
	if in.FullName, err = m.prompt(ctx, "Full Name: "); err != nil {
		return err
	}
	if in.Email, err = m.prompt(ctx, "Email: "); err != nil {
		return err
	}
	role, err := m.prompt(ctx, "Role (ADMIN/STUDENT): ")
	if err != nil {
		return err
	}
	in.Role = models.Role(strings.ToUpper(role))
	if in.Role == models.RoleAdmin && !m.AllowAdminSignup {
		m.println("\n✗ Registration failed: Only an admin can create admin accounts")
		return nil
	}
	if _, err := m.identity.Register(ctx, in); err != nil {
		m.printf("\n✗ Registration failed: %s\n", service.MessageOf(err))
		return nil
	}
	m.success("Registration successful! You can now login.")
	return nil
}

func (m *Menu) logout() {
	m.user = nil
	m.success("Logged out successfully!")
}
