package menu

import (
	"context"
	"strconv"

	"library_backend/models"
	"library_backend/service"
)

func (m *Menu) adminMenu(ctx context.Context) error {
	m.printf("\n--- ADMIN MENU (%s) ---\n", m.user.FullName)
	m.println("1. Manage Books")
	m.println("2. Issue Book")
	m.println("3. Return Book")
	m.println("4. View All Issued Books")
	m.println("5. View Overdue Books")
	m.println("6. View All Students")
	m.println("7. Logout")
	choice, err := m.promptInt(ctx, "Choose an option: ")
	if err != nil {
		return err
	}
	switch choice {
	case 1:
		return m.bookManagement(ctx)
	case 2:
		return m.handleIssueBook(ctx)
	case 3:
		return m.handleReturnBook(ctx)
	case 4:
		loans, err := m.loans.OpenLoans(ctx)
		if err != nil {
			m.failure(err)
			return nil
		}
		m.println("\n--- CURRENTLY ISSUED BOOKS ---")
		m.loanTable(loans)
	case 5:
		loans, err := m.loans.Overdue(ctx)
		if err != nil {
			m.failure(err)
			return nil
		}
		m.println("\n--- OVERDUE BOOKS ---")
		m.overdueTable(loans)
		m.printf("Total Overdue: %d\n", len(loans))
	case 6:
		students, err := m.identity.ListStudents(ctx)
		if err != nil {
			m.failure(err)
			return nil
		}
		m.println("\n--- ALL STUDENTS ---")
		m.studentTable(students)
	case 7:
		m.logout()
	default:
		m.println("Invalid option. Please try again.")
	}
	return nil
}

func (m *Menu) bookManagement(ctx context.Context) error {
	m.println("\n--- BOOK MANAGEMENT ---")
	m.println("1. Add Book")
	m.println("2. Update Book")
	m.println("3. Delete Book")
	m.println("4. View All Books")
	m.println("5. Back")
	choice, err := m.promptInt(ctx, "Choose an option: ")
	if err != nil {
		return err
	}
	switch choice {
	case 1:
		return m.handleAddBook(ctx)
	case 2:
		return m.handleUpdateBook(ctx)
	case 3:
		return m.handleDeleteBook(ctx)
	case 4:
		m.viewAllBooks(ctx)
	case 5:
	default:
		m.println("Invalid option.")
	}
	return nil
}

func (m *Menu) handleAddBook(ctx context.Context) error {
	m.println("\n--- ADD NEW BOOK ---")
	var in service.BookInput
	var err error
	if in.Title, err = m.prompt(ctx, "Title: "); err != nil {
		return err
	}
	if in.Author, err = m.prompt(ctx, "Author: "); err != nil {
		return err
	}
	if in.ISBN, err = m.prompt(ctx, "ISBN: "); err != nil {
		return err
	}
	if in.Publisher, err = m.prompt(ctx, "Publisher: "); err != nil {
		return err
	}
	if in.PublicationYear, err = m.promptInt(ctx, "Publication Year: "); err != nil {
		return err
	}
	if in.Category, err = m.prompt(ctx, "Category: "); err != nil {
		return err
	}
	if in.TotalCopies, err = m.promptInt(ctx, "Total Copies: "); err != nil {
		return err
	}
	b, err := m.catalog.Add(ctx, in)
	if err != nil {
		m.printf("\n✗ Failed to add book: %s\n", service.MessageOf(err))
		return nil
	}
	m.success("Book added successfully! Book ID: " + strconv.FormatUint(uint64(b.ID), 10))
	return nil
}

// handleUpdateBook 空输入保留原值
func (m *Menu) handleUpdateBook(ctx context.Context) error {
	m.println("\n--- UPDATE BOOK ---")
	id, err := m.promptID(ctx, "Enter Book ID to update: ")
	if err != nil {
		return err
	}
	b, err := m.catalog.Get(ctx, id)
	if err != nil {
		m.failure(err)
		return nil
	}
	m.println("Current details: " + b.Title)
	in := service.BookInput{
		Title: b.Title, Author: b.Author, ISBN: b.ISBN, Publisher: b.Publisher,
		PublicationYear: b.PublicationYear, Category: b.Category, TotalCopies: b.TotalCopies,
	}
	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"New Title", &in.Title},
		{"New Author", &in.Author},
		{"New ISBN", &in.ISBN},
		{"New Publisher", &in.Publisher},
		{"New Category", &in.Category},
	} {
		s, err := m.prompt(ctx, f.label+" (press Enter to keep current): ")
		if err != nil {
			return err
		}
		if s != "" {
			*f.dst = s
		}
	}
	for _, f := range []struct {
		label string
		dst   *int
	}{
		{"New Publication Year", &in.PublicationYear},
		{"New Total Copies", &in.TotalCopies},
	} {
		s, err := m.prompt(ctx, f.label+" (press Enter to keep current): ")
		if err != nil {
			return err
		}
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			m.println("Invalid number, keeping current value.")
			continue
		}
		*f.dst = n
	}
	if _, err := m.catalog.Update(ctx, id, in); err != nil {
		m.failure(err)
		return nil
	}
	m.success("Book updated successfully!")
	return nil
}

func (m *Menu) handleDeleteBook(ctx context.Context) error {
	m.println("\n--- DELETE BOOK ---")
	id, err := m.promptID(ctx, "Enter Book ID to delete: ")
	if err != nil {
		return err
	}
	if err := m.catalog.Delete(ctx, id); err != nil {
		m.failure(err)
		return nil
	}
	m.success("Book deleted successfully!")
	return nil
}

func (m *Menu) handleIssueBook(ctx context.Context) error {
	m.println("\n--- ISSUE BOOK ---")
	bookID, err := m.promptID(ctx, "Enter Book ID: ")
	if err != nil {
		return err
	}
	userID, err := m.promptID(ctx, "Enter Student User ID: ")
	if err != nil {
		return err
	}
	// 先查库存
	avail, err := m.catalog.IsAvailable(ctx, bookID)
	if err != nil {
		m.failure(err)
		return nil
	}
	if !avail {
		m.println("\n✗ Book is not available. All copies are issued")
		return nil
	}
	loan, err := m.loans.Issue(ctx, bookID, userID)
	if err != nil {
		m.failure(err)
		return nil
	}
	m.success("Book issued successfully! Issue ID: " + strconv.FormatUint(uint64(loan.ID), 10) +
		", due " + loan.DueDate.Format(dateLayout))
	return nil
}

func (m *Menu) handleReturnBook(ctx context.Context) error {
	m.println("\n--- RETURN BOOK ---")
	issueID, err := m.promptID(ctx, "Enter Issue ID: ")
	if err != nil {
		return err
	}
	rc, err := m.loans.Return(ctx, issueID)
	if err != nil {
		m.failure(err)
		return nil
	}
	m.success(rc.Message)
	return nil
}

func (m *Menu) viewAllBooks(ctx context.Context) {
	books, err := m.catalog.List(ctx)
	if err != nil {
		m.failure(err)
		return
	}
	m.println("\n--- ALL BOOKS ---")
	m.bookTable(books)
	if n, err := m.catalog.Count(ctx); err == nil {
		m.printf("Total Books: %d\n", n)
	}
}

func (m *Menu) studentTable(students []models.User) {
	m.printf("%-5s %-20s %-20s %-30s\n", "ID", "Username", "Name", "Email")
	m.println(rule(78))
	for _, s := range students {
		m.printf("%-5d %-20s %-20s %-30s\n", s.ID, truncate(s.Username, 20), truncate(s.FullName, 20), s.Email)
	}
}
