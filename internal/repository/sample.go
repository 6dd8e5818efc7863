package repository

import "expensetracker/internal/core"

// SampleDrafts returns the demo data set: fifteen expenses across November
// and December 2024.
func SampleDrafts() []core.Draft {
	return []core.Draft{
		{Date: core.NewDate(2024, 12, 15), Amount: core.Money{Cents: 4599}, Category: core.Food, Description: "Grocery shopping at Whole Foods"},
		{Date: core.NewDate(2024, 12, 14), Amount: core.Money{Cents: 1250}, Category: core.Transportation, Description: "Uber ride to downtown"},
		{Date: core.NewDate(2024, 12, 13), Amount: core.Money{Cents: 8999}, Category: core.Entertainment, Description: "Concert tickets"},
		{Date: core.NewDate(2024, 12, 12), Amount: core.Money{Cents: 15678}, Category: core.Shopping, Description: "Winter jacket from Amazon"},
		{Date: core.NewDate(2024, 12, 11), Amount: core.Money{Cents: 12500}, Category: core.Bills, Description: "Electric bill payment"},
		{Date: core.NewDate(2024, 12, 10), Amount: core.Money{Cents: 2499}, Category: core.Food, Description: "Pizza delivery"},
		{Date: core.NewDate(2024, 12, 9), Amount: core.Money{Cents: 875}, Category: core.Transportation, Description: "Subway fare"},
		{Date: core.NewDate(2024, 12, 8), Amount: core.Money{Cents: 6750}, Category: core.Food, Description: "Dinner at restaurant"},
		{Date: core.NewDate(2024, 12, 7), Amount: core.Money{Cents: 29999}, Category: core.Shopping, Description: "New smartphone case and accessories"},
		{Date: core.NewDate(2024, 12, 6), Amount: core.Money{Cents: 1500}, Category: core.Entertainment, Description: "Movie ticket"},
		{Date: core.NewDate(2024, 11, 28), Amount: core.Money{Cents: 7890}, Category: core.Food, Description: "Weekly groceries"},
		{Date: core.NewDate(2024, 11, 25), Amount: core.Money{Cents: 45000}, Category: core.Bills, Description: "Monthly rent payment"},
		{Date: core.NewDate(2024, 11, 22), Amount: core.Money{Cents: 3250}, Category: core.Transportation, Description: "Gas for car"},
		{Date: core.NewDate(2024, 11, 18), Amount: core.Money{Cents: 8999}, Category: core.Other, Description: "Annual software subscription"},
		{Date: core.NewDate(2024, 11, 15), Amount: core.Money{Cents: 12345}, Category: core.Shopping, Description: "Books and office supplies"},
	}
}
