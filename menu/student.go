package menu

import (
	"context"
)

func (m *Menu) studentMenu(ctx context.Context) error {
	m.printf("\n--- STUDENT MENU (%s) ---\n", m.user.FullName)
	m.println("1. View All Books")
	m.println("2. Search Books")
	m.println("3. My Issued Books")
	m.println("4. My History")
	m.println("5. Logout")
	choice, err := m.promptInt(ctx, "Choose an option: ")
	if err != nil {
		return err
	}
	switch choice {
	case 1:
		m.viewAllBooks(ctx)
	case 2:
		return m.handleSearchBooks(ctx)
	case 3:
		loans, err := m.loans.OpenLoansByUser(ctx, m.user.ID)
		if err != nil {
			m.failure(err)
			return nil
		}
		m.println("\n--- MY ISSUED BOOKS ---")
		m.myLoansTable(loans)
		if len(loans) == 0 {
			m.println("You have no issued books currently.")
		}
	case 4:
		loans, err := m.loans.HistoryByUser(ctx, m.user.ID)
		if err != nil {
			m.failure(err)
			return nil
		}
		m.println("\n--- MY BOOK HISTORY ---")
		m.historyTable(loans)
	case 5:
		m.logout()
	default:
		m.println("Invalid option. Please try again.")
	}
	return nil
}

func (m *Menu) handleSearchBooks(ctx context.Context) error {
	m.println("\n--- SEARCH BOOKS ---")
	m.println("1. Search by Title")
	m.println("2. Search by Author")
	m.println("3. Search by Category")
	choice, err := m.promptInt(ctx, "Choose an option: ")
	if err != nil {
		return err
	}
	var label string
	switch choice {
	case 1:
		label = "Enter title: "
	case 2:
		label = "Enter author: "
	case 3:
		label = "Enter category: "
	default:
		m.println("Invalid option.")
		return nil
	}
	q, err := m.prompt(ctx, label)
	if err != nil {
		return err
	}
	search := m.catalog.SearchByTitle
	switch choice {
	case 2:
		search = m.catalog.SearchByAuthor
	case 3:
		search = m.catalog.ByCategory
	}
	books, err := search(ctx, q)
	if err != nil {
		m.failure(err)
		return nil
	}
	m.println("\n--- SEARCH RESULTS ---")
	m.searchTable(books)
	return nil
}
