package menu

import (
	"strings"

	"library_backend/models"
)

const dateLayout = "2006-01-02"

func rule(n int) string { return strings.Repeat("=", n) }

// truncate shortens s to n runes, ending with "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func (m *Menu) bookTable(books []models.Book) {
	m.printf("%-5s %-30s %-20s %-15s %-10s %-10s\n", "ID", "Title", "Author", "ISBN", "Total", "Available")
	m.println(rule(100))
	for _, b := range books {
		m.printf("%-5d %-30s %-20s %-15s %-10d %-10d\n",
			b.ID, truncate(b.Title, 30), truncate(b.Author, 20), b.ISBN, b.TotalCopies, b.AvailableCopies)
	}
	m.printf("\nTotal Books: %d\n", len(books))
}

func (m *Menu) searchTable(books []models.Book) {
	m.printf("%-5s %-30s %-20s %-10s\n", "ID", "Title", "Author", "Available")
	m.println(rule(70))
	for _, b := range books {
		m.printf("%-5d %-30s %-20s %-10d\n", b.ID, truncate(b.Title, 30), truncate(b.Author, 20), b.AvailableCopies)
	}
	m.printf("\nFound: %d books\n", len(books))
}

func (m *Menu) loanTable(loans []models.LoanView) {
	m.printf("%-5s %-30s %-20s %-12s %-12s\n", "ID", "Book", "Student", "Issue Date", "Due Date")
	m.println(rule(85))
	for _, l := range loans {
		m.printf("%-5d %-30s %-20s %-12s %-12s\n",
			l.ID, truncate(l.BookTitle, 30), truncate(l.UserName, 20),
			l.IssueDate.Format(dateLayout), l.DueDate.Format(dateLayout))
	}
}

func (m *Menu) overdueTable(loans []models.LoanView) {
	m.printf("%-5s %-30s %-20s %-12s\n", "ID", "Book", "Student", "Due Date")
	m.println(rule(72))
	for _, l := range loans {
		m.printf("%-5d %-30s %-20s %-12s\n",
			l.ID, truncate(l.BookTitle, 30), truncate(l.UserName, 20), l.DueDate.Format(dateLayout))
	}
}

func (m *Menu) myLoansTable(loans []models.LoanView) {
	m.printf("%-5s %-30s %-20s %-12s %-12s\n", "ID", "Book", "Author", "Issue Date", "Due Date")
	m.println(rule(85))
	for _, l := range loans {
		m.printf("%-5d %-30s %-20s %-12s %-12s\n",
			l.ID, truncate(l.BookTitle, 30), truncate(l.BookAuthor, 20),
			l.IssueDate.Format(dateLayout), l.DueDate.Format(dateLayout))
	}
}

func (m *Menu) historyTable(loans []models.LoanView) {
	m.printf("%-30s %-12s %-12s %-12s %-10s %-8s\n", "Book", "Issue Date", "Due Date", "Returned", "Status", "Fine")
	m.println(rule(90))
	for _, l := range loans {
		returned := "-"
		if l.ReturnDate != nil {
			returned = l.ReturnDate.Format(dateLayout)
		}
		m.printf("%-30s %-12s %-12s %-12s %-10s %-8.2f\n",
			truncate(l.BookTitle, 30), l.IssueDate.Format(dateLayout), l.DueDate.Format(dateLayout),
			returned, l.Status, l.FineAmount)
	}
}
